package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/printer"
	"github.com/majorcontext/exectrace/internal/sysmon"
	"github.com/spf13/cobra"
)

var (
	systemFlags traceFlags
	systemPID   int
)

var systemCmd = &cobra.Command{
	Use:   "system [flags]",
	Short: "Observe exec activity across the whole system",
	Long: `Observe every exec on the system using the kernel's proc connector,
without attaching to or slowing down any process. Arguments are
reconstructed from /proc right after each notification, so very
short-lived processes may appear with partial data.

Requires root or CAP_NET_ADMIN. Press Ctrl+C to stop.

Examples:
  # Watch everything
  sudo exectrace system

  # Watch one process tree
  sudo exectrace system --pid 1234

  # Hide shell noise
  sudo exectrace system --exclude-comm sh,bash`,
	Args: cobra.NoArgs,
	RunE: runSystem,
}

func init() {
	rootCmd.AddCommand(systemCmd)
	systemCmd.Flags().IntVar(&systemPID, "pid", 0, "only observe this process and its descendants")
	systemFlags.registerFilter(systemCmd)
	systemFlags.registerPrinter(systemCmd)
	systemFlags.registerRecord(systemCmd)
}

func runSystem(cmd *cobra.Command, args []string) error {
	out, closeOut, err := systemFlags.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	// There is no single traced command, so env diffs are against our
	// own environment, same as the log command.
	baseline := event.CaptureBaseline()
	p := printer.New(out, baseline, systemFlags.printerOptions(out))

	var record func(event.Event)
	var finish func(int)
	if systemFlags.record {
		rec, fin, err := startRecording([]string{"(system)"})
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
	mon, err := sysmon.New(sysmon.Config{
		RootPID:     systemPID,
		FilterComm:  systemFlags.filterComm,
		ExcludeComm: systemFlags.excludeComm,
	}, queue)
	if err != nil {
		return err
	}
	if err := mon.Start(); err != nil {
		return fmt.Errorf("starting system monitor (requires root or CAP_NET_ADMIN): %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		log.Debug("stopping system monitor")
		if err := mon.Stop(); err != nil {
			log.Error("failed to stop system monitor", "error", err)
		}
	}()

	for {
		ev, ok := queue.Recv()
		if !ok {
			break
		}
		if record != nil {
			record(ev)
		}
		if err := p.HandleEvent(ev); err != nil {
			log.Warn("failed to write trace line", "error", err)
		}
	}

	if finish != nil {
		finish(0)
	}
	return nil
}
