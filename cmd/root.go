package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
)

// NewRootCommand creates and returns the root cobra command with all global
// persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "efsim",
		Short:         "Simulate the EFS mount-target security-group API",
		Long:          "Run a local EFS and EC2 simulator that speaks the AWS wire protocols, and inspect its mount targets with the AWS SDK.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cliCtx := cli.NewCLIContext(cmd)
			ctx = cli.WithContext(ctx, cliCtx)

			if commandNeedsAWS(cmd.Name()) {
				clients, err := initAWSClients(ctx, cliCtx)
				if err != nil {
					return reportError(cmd, cliCtx, err)
				}
				ctx = contextWithAWSClients(ctx, clients)
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.SetVersionTemplate("efsim version {{.Version}}\n")

	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Show AWS SDK request and response details")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().String("endpoint", "", "Simulator endpoint URL (default from config)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (default from config)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMountTargetCommand())
	rootCmd.AddCommand(newWhoamiCommand())

	return rootCmd
}

// Execute creates the root command and runs it with ctx. Called from main.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
