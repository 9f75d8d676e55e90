package cli

import (
	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/printer"
	"github.com/majorcontext/exectrace/internal/tracer"
	"github.com/spf13/cobra"
)

var logFlags traceFlags

var logCmd = &cobra.Command{
	Use:   "log [flags] -- <command> [args...]",
	Short: "Run a command and print every exec in its process tree",
	Long: `Run a command under the tracer and print one line per exec-family
syscall: the filename and argv exactly as passed to the kernel, plus
environment changes against the tracer's own environment.

Failed execs are printed too, with the errno decoded.

Examples:
  # Trace a build and see every compiler invocation
  exectrace log -- make -j8

  # Only show what gets handed to cc1
  exectrace log --filter-comm cc1 -- gcc main.c

  # Record the session for later replay
  exectrace log --record -- ./configure`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logFlags.registerEngine(logCmd)
	logFlags.registerFilter(logCmd)
	logFlags.registerPrinter(logCmd)
	logFlags.registerRecord(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	engineOpts, err := logFlags.tracerOptions(cmd)
	if err != nil {
		return err
	}
	out, closeOut, err := logFlags.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	baseline := event.CaptureBaseline()
	p := printer.New(out, baseline, logFlags.printerOptions(out))

	var record func(event.Event)
	var finish func(int)
	if logFlags.record {
		rec, fin, err := startRecording(args)
		if err != nil {
			return err
		}
		record = func(ev event.Event) {
			if err := rec.Record(ev); err != nil {
				log.Warn("failed to record event", "error", err)
			}
		}
		finish = fin
	}

	queue := event.NewQueue()
	tr := tracer.New(engineOpts, nil, queue)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ev, ok := queue.Recv()
			if !ok {
				return
			}
			if record != nil {
				record(ev)
			}
			if err := p.HandleEvent(ev); err != nil {
				log.Warn("failed to write trace line", "error", err)
			}
		}
	}()

	code, runErr := tr.StartRootProcess(args)
	<-done

	if finish != nil {
		finish(code)
	}
	if runErr != nil {
		return runErr
	}
	rootExitCode = code
	return nil
}
