package main

import (
	"fmt"
	"os"

	"github.com/majorcontext/exectrace/cmd/exectrace/cli"
	"github.com/majorcontext/exectrace/internal/tracer"
)

func main() {
	// The engine re-executes this binary as the child-side bootstrap
	// stage. Dispatch on the hidden argv before any CLI parsing so the
	// stage never sees cobra.
	if len(os.Args) > 1 && os.Args[1] == tracer.BootstrapName {
		args := os.Args[2:]
		installFilter := false
		if len(args) > 0 && args[0] == tracer.BootstrapFilterFlag {
			installFilter = true
			args = args[1:]
		}
		// RunBootstrap only returns on failure; exec replaces the image.
		if err := tracer.RunBootstrap(args, installFilter); err != nil {
			fmt.Fprintf(os.Stderr, "exectrace: %v\n", err)
		}
		os.Exit(127)
	}

	os.Exit(cli.Execute())
}
