package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/config"
	"github.com/nicholasgasior/efsim/internal/logging"
	"github.com/nicholasgasior/efsim/internal/server"
)

// serveDeps holds the injectable dependencies for the serve command.
type serveDeps struct {
	// ready is called with the bound address once the listener is open.
	ready func(addr string)
	// processLogOutput overrides where zap writes (tests use a temp file).
	processLogOutput []string
}

// serveStartJSON is printed on stdout in --json mode once listening.
type serveStartJSON struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccountID string `json:"account_id"`
	LogDir    string `json:"log_dir"`
}

func newServeCommand() *cobra.Command {
	return newServeCommandWithDeps(nil)
}

func newServeCommandWithDeps(deps *serveDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the EFS/EC2 simulator",
		Long: "Serve the simulated EFS, EC2 and STS APIs on one HTTP listener until " +
			"interrupted. Point any aws-sdk-go-v2 client at it with BaseEndpoint.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps == nil {
				deps = &serveDeps{}
			}
			return runServe(cmd, deps)
		},
	}

	cmd.Flags().String("listen", "", "Listen address host:port (default from config)")
	cmd.Flags().String("account-id", "", "Simulated AWS account id (default from config)")
	cmd.Flags().String("log-dir", "", "Directory for call and audit logs (default from config)")
	cmd.Flags().Bool("no-audit", false, "Do not write the audit log")

	return cmd
}

func runServe(cmd *cobra.Command, deps *serveDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)
	if cliCtx == nil {
		cliCtx = &cli.CLIContext{}
	}

	configDir := config.DefaultConfigDir()
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if err := applyServeOverrides(cmd, cliCtx, cfg); err != nil {
		return err
	}
	logDir := cfg.ResolvedLogDir(configDir)

	zl, err := logging.NewProcessLogger(logging.ProcessOptions{
		Console:     term.IsTerminal(int(os.Stderr.Fd())),
		Debug:       cliCtx.Debug,
		OutputPaths: deps.processLogOutput,
	})
	if err != nil {
		return fmt.Errorf("create process logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	calls, err := logging.NewStructuredLogger(logDir, cliCtx.Debug)
	if err != nil {
		return err
	}
	defer calls.Close()
	calls.SetStderr(cmd.ErrOrStderr())

	auditor := logging.NopAuditor()
	if noAudit, _ := cmd.Flags().GetBool("no-audit"); !noAudit {
		auditor, err = logging.NewAuditLogger(filepath.Join(logDir, logging.AuditLogFile))
		if err != nil {
			return err
		}
	}
	defer auditor.Close()

	srv := server.New(server.Config{
		Region:            cfg.Region,
		AccountID:         cfg.AccountID,
		MaxSecurityGroups: cfg.MaxSecurityGroups,
	},
		server.WithLogger(calls),
		server.WithAuditor(auditor),
		server.WithZap(zl),
	)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	addr := ln.Addr().String()
	zl.Debug("logging", zap.String("log_dir", logDir))

	if err := printServeStart(cmd, cliCtx.JSON, serveStartJSON{
		Endpoint:  "http://" + addr,
		Region:    cfg.Region,
		AccountID: cfg.AccountID,
		LogDir:    logDir,
	}); err != nil {
		_ = ln.Close()
		return err
	}
	if deps.ready != nil {
		deps.ready(addr)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx, ln)
}

// applyServeOverrides layers explicitly set flags over the config file,
// validating them with the same rules as "config set".
func applyServeOverrides(cmd *cobra.Command, cliCtx *cli.CLIContext, cfg *config.Config) error {
	overrides := []struct{ flag, key string }{
		{"listen", "listen_addr"},
		{"account-id", "account_id"},
		{"log-dir", "log_dir"},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(o.flag)
		if err := cfg.Set(o.key, v); err != nil {
			return fmt.Errorf("--%s: %w", o.flag, err)
		}
	}
	if cliCtx.Region != "" {
		if err := cfg.Set("region", cliCtx.Region); err != nil {
			return fmt.Errorf("--region: %w", err)
		}
	}
	return nil
}

func printServeStart(cmd *cobra.Command, jsonOutput bool, info serveStartJSON) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	_, err := fmt.Fprintf(w,
		"efsim listening on %s\nregion %s, account %s\nlogs in %s\n",
		info.Endpoint, info.Region, info.AccountID, info.LogDir,
	)
	return err
}
