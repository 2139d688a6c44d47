package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display current configuration",
		Long:  "Display all efsim configuration values. Uses ~/.config/efsim/config.toml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.DefaultConfigDir())
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				return printConfigJSON(cmd, cfg)
			}

			return printConfigHuman(cmd, cfg)
		},
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func printConfigJSON(cmd *cobra.Command, cfg *config.Config) error {
	data := map[string]any{
		"region":              cfg.Region,
		"account_id":          cfg.AccountID,
		"listen_addr":         cfg.ListenAddr,
		"endpoint":            cfg.Endpoint,
		"log_dir":             cfg.LogDir,
		"max_security_groups": cfg.MaxSecurityGroups,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printConfigHuman(cmd *cobra.Command, cfg *config.Config) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
	for _, key := range config.ValidKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", key, displayValue(value))
	}
	return tw.Flush()
}

// displayValue renders an unset value for humans.
func displayValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
