// Package cli implements the exectrace command-line interface using Cobra.
// It provides commands for tracing a single command tree (log, tui),
// observing the whole system (system), and replaying recorded sessions.
package cli

import (
	"github.com/majorcontext/exectrace/internal/config"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	jsonOut   bool
	colorMode string
)

// globalConfig is loaded once in PersistentPreRunE. Commands read their
// flag defaults from it.
var globalConfig = config.Default()

// rootExitCode is what the process exits with when Execute returns no
// error. The log and tui commands set it to the traced root's exit code.
var rootExitCode int

var rootCmd = &cobra.Command{
	Use:   "exectrace",
	Short: "exectrace - trace exec syscalls with full arguments",
	Long: `exectrace runs a command and reports every exec-family syscall in its
process tree: the exact filename, argv, and environment as passed to the
kernel, including calls that fail and processes too short-lived for
polling tools to see.

Modes:
  log       trace a command and print one line per exec
  tui       trace a command in a full-terminal UI with a status bar
  system    observe exec activity across the whole system (requires root)
  sessions  list and replay recorded sessions`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err == nil {
			globalConfig = cfg
		}

		// The tui command owns the terminal; stderr chatter would
		// corrupt the display.
		interactive := cmd.Name() == "tui"

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			Interactive:   interactive,
			DebugDir:      config.DebugLogDir(),
			RetentionDays: globalConfig.Log.RetentionDays,
		}); err != nil {
			// Log init failure is non-fatal - fallback to default logger
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer log.Close()
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return rootExitCode
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "log to stderr in JSON format")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto, always, never)")
}
