package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/spf13/cobra"

	efsimaws "github.com/nicholasgasior/efsim/internal/aws"
	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/progress"
)

// mountTargetDeps holds the injectable dependencies for the mount-target
// subcommands.
type mountTargetDeps struct {
	describe   efsimaws.DescribeMountTargetsAPI
	groups     efsimaws.DescribeMountTargetSecurityGroupsAPI
	modify     efsimaws.ModifyMountTargetSecurityGroupsAPI
	interfaces efsimaws.DescribeNetworkInterfacesAPI
	endpoint   string
}

// mountTargetDepsFor returns deps when set (tests), otherwise wires the
// clients stored on the command context.
func mountTargetDepsFor(cmd *cobra.Command, deps *mountTargetDeps) (*mountTargetDeps, error) {
	if deps != nil {
		return deps, nil
	}
	clients := awsClientsFromContext(cmd.Context())
	if clients == nil {
		return nil, fmt.Errorf("AWS clients not configured")
	}
	return &mountTargetDeps{
		describe:   clients.efsClient,
		groups:     clients.efsClient,
		modify:     clients.efsClient,
		interfaces: clients.ec2Client,
		endpoint:   clients.endpoint,
	}, nil
}

func newMountTargetCommand() *cobra.Command {
	return newMountTargetCommandWithDeps(nil)
}

func newMountTargetCommandWithDeps(deps *mountTargetDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mount-target",
		Aliases: []string{"mt"},
		Short:   "Inspect and change EFS mount targets",
	}

	cmd.AddCommand(newMountTargetListCommand(deps))
	cmd.AddCommand(newMountTargetSecurityGroupsCommand(deps))
	cmd.AddCommand(newMountTargetSetSecurityGroupsCommand(deps))
	cmd.AddCommand(newMountTargetVerifyCommand(deps))

	return cmd
}

// runMountTarget resolves deps and runs fn, reporting failures in the
// format the --json flag asks for.
func runMountTarget(cmd *cobra.Command, deps *mountTargetDeps, fn func(ctx context.Context, d *mountTargetDeps, cliCtx *cli.CLIContext) error) error {
	cliCtx := cli.FromCommand(cmd)
	if cliCtx == nil {
		cliCtx = &cli.CLIContext{}
	}
	d, err := mountTargetDepsFor(cmd, deps)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, d, cliCtx); err != nil {
		var silent silentExitError
		if errors.As(err, &silent) {
			return err
		}
		return reportError(cmd, cliCtx, explainCallError(err, d.endpoint))
	}
	return nil
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

// mountTargetJSON is the --json shape of one mount target.
type mountTargetJSON struct {
	MountTargetID        string `json:"mount_target_id"`
	FileSystemID         string `json:"file_system_id"`
	SubnetID             string `json:"subnet_id"`
	VpcID                string `json:"vpc_id"`
	AvailabilityZoneName string `json:"availability_zone"`
	IPAddress            string `json:"ip_address"`
	NetworkInterfaceID   string `json:"network_interface_id"`
	LifeCycleState       string `json:"state"`
}

func newMountTargetListCommand(deps *mountTargetDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file-system-id>",
		Short: "List the mount targets of a file system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMountTarget(cmd, deps, func(ctx context.Context, d *mountTargetDeps, cliCtx *cli.CLIContext) error {
				items, err := listMountTargets(ctx, d.describe, args[0])
				if err != nil {
					return err
				}
				if cliCtx.JSON {
					return writeJSON(cmd.OutOrStdout(), items)
				}
				writeMountTargetTable(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
}

// listMountTargets walks every page of DescribeMountTargets for fileSystemID.
func listMountTargets(ctx context.Context, client efsimaws.DescribeMountTargetsAPI, fileSystemID string) ([]mountTargetJSON, error) {
	items := []mountTargetJSON{}
	p := efs.NewDescribeMountTargetsPaginator(client, &efs.DescribeMountTargetsInput{
		FileSystemId: sdkaws.String(fileSystemID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("efs describe-mount-targets: %w", err)
		}
		for _, mt := range page.MountTargets {
			items = append(items, mountTargetJSON{
				MountTargetID:        sdkaws.ToString(mt.MountTargetId),
				FileSystemID:         sdkaws.ToString(mt.FileSystemId),
				SubnetID:             sdkaws.ToString(mt.SubnetId),
				VpcID:                sdkaws.ToString(mt.VpcId),
				AvailabilityZoneName: sdkaws.ToString(mt.AvailabilityZoneName),
				IPAddress:            sdkaws.ToString(mt.IpAddress),
				NetworkInterfaceID:   sdkaws.ToString(mt.NetworkInterfaceId),
				LifeCycleState:       string(mt.LifeCycleState),
			})
		}
	}
	return items, nil
}

func writeMountTargetTable(w io.Writer, items []mountTargetJSON) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No mount targets found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MOUNT TARGET\tSUBNET\tAZ\tIP\tINTERFACE\tSTATE")
	for _, mt := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mt.MountTargetID, mt.SubnetID, mt.AvailabilityZoneName,
			mt.IPAddress, mt.NetworkInterfaceID, mt.LifeCycleState)
	}
	tw.Flush()
}

// ---------------------------------------------------------------------------
// security-groups / set-security-groups
// ---------------------------------------------------------------------------

// securityGroupsJSON is the --json shape of a mount target's groups.
type securityGroupsJSON struct {
	MountTargetID  string   `json:"mount_target_id"`
	SecurityGroups []string `json:"security_groups"`
}

func newMountTargetSecurityGroupsCommand(deps *mountTargetDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "security-groups <mount-target-id>",
		Short: "Show the security groups of a mount target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMountTarget(cmd, deps, func(ctx context.Context, d *mountTargetDeps, cliCtx *cli.CLIContext) error {
				out, err := d.groups.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
					MountTargetId: sdkaws.String(args[0]),
				})
				if err != nil {
					return fmt.Errorf("efs describe-mount-target-security-groups: %w", err)
				}
				groups := out.SecurityGroups
				if groups == nil {
					groups = []string{}
				}
				if cliCtx.JSON {
					return writeJSON(cmd.OutOrStdout(), securityGroupsJSON{MountTargetID: args[0], SecurityGroups: groups})
				}
				for _, g := range groups {
					fmt.Fprintln(cmd.OutOrStdout(), g)
				}
				return nil
			})
		},
	}
}

func newMountTargetSetSecurityGroupsCommand(deps *mountTargetDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "set-security-groups <mount-target-id> <security-group-id>...",
		Short: "Replace the security groups of a mount target",
		Long: "Replace the security groups of a mount target. The groups are applied " +
			"to the mount target's network interface as well, and the change is " +
			"rejected as a whole if any group is invalid.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMountTarget(cmd, deps, func(ctx context.Context, d *mountTargetDeps, cliCtx *cli.CLIContext) error {
				mtID, groups := args[0], args[1:]
				rep := progress.ForCommand(cmd.ErrOrStderr(), cliCtx.Verbose, cliCtx.JSON)

				rep.Step("Modifying security groups of %s", mtID)
				_, err := d.modify.ModifyMountTargetSecurityGroups(ctx, &efs.ModifyMountTargetSecurityGroupsInput{
					MountTargetId:  sdkaws.String(mtID),
					SecurityGroups: groups,
				})
				if err != nil {
					rep.Fail("Modify failed")
					return fmt.Errorf("efs modify-mount-target-security-groups: %w", err)
				}

				rep.Step("Reading back security groups of %s", mtID)
				out, err := d.groups.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
					MountTargetId: sdkaws.String(mtID),
				})
				if err != nil {
					rep.Fail("Read back failed")
					return fmt.Errorf("efs describe-mount-target-security-groups: %w", err)
				}
				rep.Done("Security groups updated")

				if cliCtx.JSON {
					return writeJSON(cmd.OutOrStdout(), securityGroupsJSON{MountTargetID: mtID, SecurityGroups: out.SecurityGroups})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set security groups of %s: %s\n", mtID, strings.Join(out.SecurityGroups, ", "))
				return nil
			})
		},
	}
}

// ---------------------------------------------------------------------------
// verify
// ---------------------------------------------------------------------------

// verifyJSON is the --json shape of a verification.
type verifyJSON struct {
	*efsimaws.Verification
	InSync             bool     `json:"in_sync"`
	MissingOnInterface []string `json:"missing_on_interface,omitempty"`
	ExtraOnInterface   []string `json:"extra_on_interface,omitempty"`
}

func newMountTargetVerifyCommand(deps *mountTargetDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <mount-target-id>",
		Short: "Check that a mount target and its network interface agree on security groups",
		Long: "Describe the mount target, its security groups and its network interface " +
			"through the public APIs and compare the two group sets. Exits non-zero " +
			"when they differ.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMountTarget(cmd, deps, func(ctx context.Context, d *mountTargetDeps, cliCtx *cli.CLIContext) error {
				return runVerify(ctx, cmd, d, cliCtx, args[0])
			})
		},
	}
}

func runVerify(ctx context.Context, cmd *cobra.Command, d *mountTargetDeps, cliCtx *cli.CLIContext, mtID string) error {
	rep := progress.ForCommand(cmd.ErrOrStderr(), cliCtx.Verbose, cliCtx.JSON)
	rep.Step("Comparing security groups of %s with its network interface", mtID)

	reader := struct {
		efsimaws.DescribeMountTargetsAPI
		efsimaws.DescribeMountTargetSecurityGroupsAPI
	}{d.describe, d.groups}
	res, err := efsimaws.NewSecurityGroupVerifier(reader, d.interfaces).Verify(ctx, mtID)

	var drift *efsimaws.DriftError
	switch {
	case errors.As(err, &drift):
		rep.Fail("Security groups differ")
	case err != nil:
		rep.Fail("Verification failed")
		return err
	default:
		rep.Done("Security groups match")
	}

	w := cmd.OutOrStdout()
	if cliCtx.JSON {
		out := verifyJSON{Verification: res, InSync: drift == nil}
		if drift != nil {
			out.MissingOnInterface = drift.MissingOnInterface
			out.ExtraOnInterface = drift.ExtraOnInterface
		}
		if err := writeJSON(w, out); err != nil {
			return err
		}
		if drift != nil {
			return silentExitError{}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "mount target\t%s\t%s\n", res.MountTargetID, strings.Join(res.MountTargetGroups, ", "))
	fmt.Fprintf(tw, "interface\t%s\t%s\n", res.NetworkInterfaceID, strings.Join(res.InterfaceGroups, ", "))
	tw.Flush()
	if drift != nil {
		return drift
	}
	fmt.Fprintln(w, "IN SYNC")
	return nil
}

// writeJSON encodes v with the indentation every --json output uses.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
