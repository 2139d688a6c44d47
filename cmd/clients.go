// Package cmd provides CLI commands for efsim.
// This file defines the shared AWS client infrastructure used by
// PersistentPreRunE to initialize SDK clients once and share them
// across subcommands via context.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	efsimaws "github.com/nicholasgasior/efsim/internal/aws"
	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/config"
)

// awsClients holds pre-initialized AWS SDK clients pointed at the simulator.
// Created once in PersistentPreRunE and stored on the command context.
type awsClients struct {
	efsClient *efs.Client
	ec2Client *ec2.Client
	stsClient *sts.Client

	endpoint string
	region   string
}

// awsClientsKey is the context key for storing awsClients.
type awsClientsKey struct{}

// awsClientsFromContext retrieves the awsClients from the context.
// Returns nil if no clients have been stored.
func awsClientsFromContext(ctx context.Context) *awsClients {
	v, _ := ctx.Value(awsClientsKey{}).(*awsClients)
	return v
}

// contextWithAWSClients returns a new context carrying the given awsClients.
func contextWithAWSClients(ctx context.Context, clients *awsClients) context.Context {
	return context.WithValue(ctx, awsClientsKey{}, clients)
}

// commandNeedsAWS returns true if the command talks to the simulator through
// the SDK. Commands that operate locally (version, config, serve, help)
// return false.
func commandNeedsAWS(cmdName string) bool {
	switch cmdName {
	case "version", "config", "set", "get", "serve", "help", "completion", "efsim", "mount-target":
		return false
	default:
		return true
	}
}

// initAWSClients loads the efsim config, resolves endpoint and region (flags
// win over config) and builds the SDK clients.
func initAWSClients(ctx context.Context, cliCtx *cli.CLIContext) (*awsClients, error) {
	cfg, err := config.Load(config.DefaultConfigDir())
	if err != nil {
		return nil, fmt.Errorf("load efsim config: %w", err)
	}

	endpoint, region := cfg.EndpointURL(), cfg.Region
	var opts []func(*awscfg.LoadOptions) error
	if cliCtx != nil {
		if cliCtx.Endpoint != "" {
			endpoint = cliCtx.Endpoint
		}
		if cliCtx.Region != "" {
			region = cliCtx.Region
		}
		if cliCtx.Debug {
			opts = append(opts, awscfg.WithClientLogMode(sdkaws.LogRequest|sdkaws.LogResponse|sdkaws.LogRetries))
		}
	}

	awsCfg, err := efsimaws.NewConfig(ctx, endpoint, region, opts...)
	if err != nil {
		return nil, err
	}

	return &awsClients{
		efsClient: efs.NewFromConfig(awsCfg),
		ec2Client: ec2.NewFromConfig(awsCfg),
		stsClient: sts.NewFromConfig(awsCfg),
		endpoint:  endpoint,
		region:    region,
	}, nil
}

// explainCallError adds a hint to errors caused by an unreachable endpoint.
// API errors from the simulator are returned unchanged.
func explainCallError(err error, endpoint string) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("cannot reach %s (is \"efsim serve\" running?): %w", endpoint, err)
	}
	return err
}
