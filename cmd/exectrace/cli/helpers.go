package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/majorcontext/exectrace/internal/config"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/printer"
	"github.com/majorcontext/exectrace/internal/session"
	"github.com/majorcontext/exectrace/internal/tracer"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// traceFlags holds the tracing options shared by the log, tui, and
// system commands. Defaults come from the config file, so resolution
// is: flag explicitly set > config file > built-in default.
type traceFlags struct {
	noFollowForks bool
	seccomp       string
	filterComm    []string
	excludeComm   []string
	traceEnv      bool
	noDiffEnv     bool
	noDecodeErrno bool
	maxArgs       int
	maxEnv        int
	record        bool
	output        string
}

// registerEngine adds the flags that only apply to the ptrace engine.
func (f *traceFlags) registerEngine(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noFollowForks, "no-follow-forks", false, "trace only the root process, not its children")
	cmd.Flags().StringVar(&f.seccomp, "seccomp-bpf", "auto", "seccomp-bpf fast path (auto, on, off)")
	cmd.Flags().IntVar(&f.maxArgs, "max-args", 0, "cap on decoded argv entries (0 = default)")
	cmd.Flags().IntVar(&f.maxEnv, "max-env", 0, "cap on decoded envp entries (0 = default)")
}

// registerFilter adds the comm filtering flags shared by every backend.
func (f *traceFlags) registerFilter(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.filterComm, "filter-comm", nil, "only show execs from processes with these comm names")
	cmd.Flags().StringSliceVar(&f.excludeComm, "exclude-comm", nil, "hide execs from processes with these comm names")
}

// registerPrinter adds the flags for line-oriented trace output.
func (f *traceFlags) registerPrinter(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.traceEnv, "trace-env", false, "print the full environment instead of a diff")
	cmd.Flags().BoolVar(&f.noDiffEnv, "no-diff-env", false, "do not print environment changes")
	cmd.Flags().BoolVar(&f.noDecodeErrno, "no-decode-errno", false, "print failed exec results as raw numbers")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write trace output to a file (default stderr, \"-\" for stdout)")
}

// registerRecord adds the session recording flag.
func (f *traceFlags) registerRecord(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.record, "record", false, "record the session for later replay")
}

// tracerOptions resolves engine options from flags and config.
func (f *traceFlags) tracerOptions(cmd *cobra.Command) (tracer.Options, error) {
	cfg := globalConfig.Trace

	follow := cfg.FollowForks
	if f.noFollowForks {
		follow = false
	}
	seccomp := cfg.Seccomp
	if cmd.Flags().Changed("seccomp-bpf") {
		seccomp = f.seccomp
	}
	switch tracer.SeccompMode(seccomp) {
	case tracer.SeccompAuto, tracer.SeccompOn, tracer.SeccompOff:
	default:
		return tracer.Options{}, fmt.Errorf("invalid seccomp-bpf mode %q (want auto, on, or off)", seccomp)
	}
	maxArgs := cfg.MaxArgs
	if cmd.Flags().Changed("max-args") {
		maxArgs = f.maxArgs
	}
	maxEnv := cfg.MaxEnv
	if cmd.Flags().Changed("max-env") {
		maxEnv = f.maxEnv
	}

	return tracer.Options{
		FollowForks: follow,
		Seccomp:     tracer.SeccompMode(seccomp),
		FilterComm:  f.filterComm,
		ExcludeComm: f.excludeComm,
		MaxArgs:     maxArgs,
		MaxEnv:      maxEnv,
	}, nil
}

// printerOptions resolves rendering options from flags and config.
func (f *traceFlags) printerOptions(out *os.File) printer.Options {
	opts := printer.DefaultOptions()
	opts.Env = f.traceEnv
	opts.DiffEnv = globalConfig.Trace.DiffEnv && !f.noDiffEnv && !f.traceEnv
	opts.DecodeErrno = globalConfig.Trace.DecodeErrno && !f.noDecodeErrno
	opts.Color = colorEnabled(out)
	return opts
}

// openOutput returns the trace output destination and a close function.
// Trace lines go to stderr by default so they never interleave with the
// traced command's own stdout; "-" selects stdout explicitly.
func (f *traceFlags) openOutput() (*os.File, func(), error) {
	switch f.output {
	case "":
		return os.Stderr, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	out, err := os.Create(f.output)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return out, func() { _ = out.Close() }, nil
}

// colorEnabled decides ANSI styling for out based on the global
// --color flag. In auto mode NO_COLOR wins over tty detection.
func colorEnabled(out *os.File) bool {
	switch colorMode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
}

// startRecording opens the session store and begins a recording.
// The returned finish function persists the exit code and closes the
// store; it must be called exactly once.
func startRecording(command []string) (*session.Recording, func(exitCode int), error) {
	store, err := session.Open(config.SessionDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	rec, err := store.Begin(command)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("starting recording: %w", err)
	}
	log.SetSessionID(strconv.FormatInt(rec.ID(), 10))
	finish := func(exitCode int) {
		if err := rec.Finish(exitCode); err != nil {
			log.Error("failed to finalize recording", "id", rec.ID(), "error", err)
		}
		if err := store.Close(); err != nil {
			log.Error("failed to close session store", "error", err)
		}
	}
	return rec, finish, nil
}
