package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
	"github.com/nicholasgasior/efsim/internal/server"
)

// Set with -ldflags "-X github.com/nicholasgasior/efsim/cmd.version=...".
// Same for commit and date.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// buildInfo describes this binary and the AWS API versions its simulator
// answers.
type buildInfo struct {
	Version string            `json:"version"`
	Commit  string            `json:"commit"`
	Date    string            `json:"date"`
	APIs    map[string]string `json:"apis"`

	apis []server.APIVersion
}

func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		APIs:    make(map[string]string),
		apis:    server.APIVersions(),
	}
	for _, a := range info.apis {
		info.APIs[a.Service] = a.Version
	}
	return info
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the efsim build and the AWS API versions it simulates",
		Long: "Print the version, commit and build date of this binary, followed by " +
			"the EFS, EC2 and STS API versions \"efsim serve\" speaks.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentBuildInfo()
			if cliCtx := cli.FromCommand(cmd); cliCtx != nil && cliCtx.JSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			return writeBuildInfo(cmd.OutOrStdout(), info)
		},
	}
}

func writeBuildInfo(w io.Writer, info buildInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "efsim version:\t%s\n", info.Version)
	fmt.Fprintf(tw, "commit:\t%s\n", info.Commit)
	fmt.Fprintf(tw, "date:\t%s\n", info.Date)
	for _, a := range info.apis {
		fmt.Fprintf(tw, "%s api:\t%s\n", a.Service, a.Version)
	}
	return tw.Flush()
}
