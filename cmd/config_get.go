package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/config"
)

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long:  "Print a single configuration value from ~/.config/efsim/config.toml.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			cfg, err := config.Load(config.DefaultConfigDir())
			if err != nil {
				return err
			}

			value, err := cfg.Get(key)
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{key: value})
			}

			fmt.Fprintln(cmd.OutOrStdout(), displayValue(value))
			return nil
		},
	}
}
