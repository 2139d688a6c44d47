package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nicholasgasior/efsim/cmd"
)

func main() {
	os.Exit(run(context.Background(), os.Stderr))
}

// run executes the command tree and returns the process exit code.
func run(ctx context.Context, stderr io.Writer) int {
	if err := cmd.Execute(ctx); err != nil {
		// silentExitError has an empty message. It signals failure without
		// printing (the command already reported the error, e.g., via JSON
		// output on stdout). Only print when the message is non-empty.
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return 1
	}
	return 0
}
