package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/identity"
)

// identityResolverAPI abstracts identity resolution for the whoami command.
// Production wires identity.Resolver over the STS client.
type identityResolverAPI interface {
	Resolve(ctx context.Context) (*identity.Owner, error)
}

// whoamiDeps holds the injectable dependencies for the whoami command.
type whoamiDeps struct {
	resolver identityResolverAPI
	endpoint string
}

// ownerJSON is the --json shape of the caller identity.
type ownerJSON struct {
	Name      string `json:"name"`
	ARN       string `json:"arn"`
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
}

func newWhoamiCommand() *cobra.Command {
	return newWhoamiCommandWithDeps(nil)
}

func newWhoamiCommandWithDeps(deps *whoamiDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the caller identity the endpoint sees",
		Long:  "Call STS GetCallerIdentity against the configured endpoint and print the caller.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps == nil {
				clients := awsClientsFromContext(cmd.Context())
				if clients == nil {
					return fmt.Errorf("AWS clients not configured")
				}
				deps = &whoamiDeps{
					resolver: identity.NewResolver(clients.stsClient),
					endpoint: clients.endpoint,
				}
			}
			return runWhoami(cmd, deps)
		},
	}
}

func runWhoami(cmd *cobra.Command, deps *whoamiDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := cli.FromCommand(cmd)

	owner, err := deps.resolver.Resolve(ctx)
	if err != nil {
		return reportError(cmd, cliCtx, explainCallError(err, deps.endpoint))
	}

	if cliCtx != nil && cliCtx.JSON {
		return writeJSON(cmd.OutOrStdout(), ownerJSON{
			Name:      owner.Name,
			ARN:       owner.ARN,
			AccountID: owner.AccountID,
			UserID:    owner.UserID,
		})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name\t%s\n", owner.Name)
	fmt.Fprintf(tw, "arn\t%s\n", owner.ARN)
	fmt.Fprintf(tw, "account\t%s\n", owner.AccountID)
	return tw.Flush()
}
