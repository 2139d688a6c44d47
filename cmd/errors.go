package cmd

import (
	"encoding/json"
	"errors"

	"github.com/aws/smithy-go"
	"github.com/spf13/cobra"

	"github.com/nicholasgasior/efsim/internal/cli"
)

// silentExitError is an error that carries no message text. It signals to
// main.go that the command failed (so os.Exit(1) is appropriate) but that
// the error has already been reported to the user (e.g., via structured JSON
// output on stdout). main.go checks err.Error() == "" before printing.
type silentExitError struct{}

func (silentExitError) Error() string { return "" }

// errorJSON is the --json shape of a failed command.
type errorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// reportError returns err unchanged in human mode. In JSON mode it writes err
// to stdout as {"error": ..., "code": ...} and returns silentExitError so the
// message is not printed twice.
func reportError(cmd *cobra.Command, cliCtx *cli.CLIContext, err error) error {
	if cliCtx == nil || !cliCtx.JSON {
		return err
	}
	out := errorJSON{Error: err.Error()}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return err
	}
	return silentExitError{}
}
