package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"
	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/term"
	"github.com/majorcontext/exectrace/internal/tracer"
	"github.com/majorcontext/exectrace/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var tuiFlags traceFlags

var tuiCmd = &cobra.Command{
	Use:   "tui [flags] -- <command> [args...]",
	Short: "Run a command under trace in a full-terminal UI",
	Long: `Run a command attached to a pseudo-terminal, with a status bar showing
live exec and process counts at the bottom of the screen. The command's
own output scrolls above the bar; full-screen programs (editors, pagers)
are composited through a virtual terminal so the bar stays visible.

Escape sequences:
  Ctrl-/ d   detach from the UI (tracing and output continue plainly)
  Ctrl-/ k   kill the traced process tree
  Ctrl-/ i   toggle an overlay showing the most recent exec

Examples:
  exectrace tui -- make -j8
  exectrace tui --record -- npm install`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiFlags.registerEngine(tuiCmd)
	tuiFlags.registerFilter(tuiCmd)
	tuiFlags.registerRecord(tuiCmd)
}

// switchableWriter lets the pty output goroutine be retargeted from the
// compositing writer to plain stdout when the user detaches.
type switchableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchableWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchableWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

type engineResult struct {
	code int
	err  error
}

func runTUI(cmd *cobra.Command, args []string) error {
	engineOpts, err := tuiFlags.tracerOptions(cmd)
	if err != nil {
		return err
	}
	if !term.IsTerminal(os.Stdin) || !term.IsTerminal(os.Stdout) {
		return fmt.Errorf("tui requires a terminal (use 'exectrace log' for piped output)")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return fmt.Errorf("opening pty: %w", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	width, height := term.GetSize(os.Stdout)
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}
	// Content area excludes the status bar row.
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(height - 1), Cols: uint16(width)}) //nolint:gosec

	rawState, err := term.EnableRawMode(os.Stdin)
	if err != nil {
		return fmt.Errorf("enabling raw mode: %w", err)
	}
	defer func() {
		if err := term.RestoreTerminal(rawState); err != nil {
			log.Debug("failed to restore terminal", "error", err)
		}
	}()

	engineOpts.Stdin = tty
	engineOpts.Stdout = tty
	engineOpts.Stderr = tty
	engineOpts.NewSession = true

	modeLabel := "seccomp"
	if engineOpts.Seccomp == tracer.SeccompOff {
		modeLabel = "ptrace"
	}

	bar := tui.NewStatusBar(strings.Join(args, " "), modeLabel)
	bar.SetDimensions(width, height)
	writer := tui.NewWriter(os.Stdout, bar)
	if err := writer.Setup(); err != nil {
		return fmt.Errorf("setting up terminal: %w", err)
	}
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			if err := writer.Cleanup(); err != nil {
				log.Debug("failed to cleanup terminal", "error", err)
			}
		})
	}
	defer cleanup()

	var record func(event.Event)
	var finish func(int)
	if tuiFlags.record {
		rec, fin, err := startRecording(args)
		if err != nil {
			cleanup()
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

	engineDone := make(chan engineResult, 1)
	go func() {
		code, err := tr.StartRootProcess(args)
		engineDone <- engineResult{code, err}
	}()

	// Forward stdin through the escape proxy to the child's pty.
	proxy := term.NewEscapeProxy(os.Stdin)
	escapeCh := make(chan term.EscapeAction, 1)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := proxy.Read(buf)
			if n > 0 {
				if _, werr := ptmx.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				if term.IsEscapeError(err) {
					escapeCh <- term.GetEscapeAction(err)
					continue
				}
				return
			}
		}
	}()

	// Child output goes through the compositing writer until detach.
	out := &switchableWriter{w: writer}
	go func() {
		_, _ = io.Copy(out, ptmx)
	}()

	// Consume the event stream: update counters, record if asked.
	var rootPID atomic.Int64
	var lastExec atomic.Value // string: rendered last exec line
	var inspecting atomic.Bool
	var uiActive atomic.Bool
	lastExec.Store("")
	uiActive.Store(true)
	go func() {
		execs := 0
		procs := make(map[int]struct{})
		for {
			ev, ok := queue.Recv()
			if !ok {
				return
			}
			if record != nil {
				record(ev)
			}
			switch e := ev.(type) {
			case event.RootSpawned:
				rootPID.Store(int64(e.PID))
				procs[e.PID] = struct{}{}
			case event.Exec:
				execs++
				procs[e.PID] = struct{}{}
				bar.SetLastExec(e.Comm)
				lastExec.Store(fmt.Sprintf("%d<%s> %s", e.PID, e.Comm, strings.Join(e.Data.Argv, " ")))
				if inspecting.Load() {
					bar.SetMessage(lastExec.Load().(string))
				}
			case event.Exit:
				procs[e.PID] = struct{}{}
			}
			bar.SetCounters(execs, len(procs))
			if !uiActive.Load() {
				continue
			}
			if err := writer.UpdateStatus(); err != nil {
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	detached := false
	for {
		select {
		case <-sigCh:
			w, h := term.GetSize(os.Stdout)
			if w <= 0 || h <= 0 {
				continue
			}
			rows := h
			if !detached {
				rows = h - 1
				if err := writer.Resize(w, h); err != nil {
					log.Debug("failed to resize terminal", "error", err)
				}
			}
			_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(w)}) //nolint:gosec

		case action := <-escapeCh:
			switch action {
			case term.EscapeDetach:
				if detached {
					continue
				}
				detached = true
				uiActive.Store(false)
				inspecting.Store(false)
				cleanup()
				out.Set(os.Stdout)
				if w, h := term.GetSize(os.Stdout); w > 0 && h > 0 {
					_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)}) //nolint:gosec
				}
				fmt.Printf("detached, tracing continues (Ctrl-/ k to kill)\r\n")

			case term.EscapeInspect:
				if detached {
					continue
				}
				if inspecting.CompareAndSwap(false, true) {
					line := lastExec.Load().(string)
					if line == "" {
						line = "no execs yet"
					}
					bar.SetMessage(line)
				} else {
					inspecting.Store(false)
					bar.ClearMessage()
				}
				if err := writer.UpdateStatus(); err != nil {
					log.Debug("failed to update status", "error", err)
				}

			case term.EscapeKill:
				if pid := rootPID.Load(); pid > 0 {
					// Session leader: signal the whole group.
					if err := unix.Kill(-int(pid), unix.SIGKILL); err != nil {
						log.Debug("failed to kill traced group", "pid", pid, "error", err)
					}
				}
			}

		case res := <-engineDone:
			uiActive.Store(false)
			cleanup()
			if finish != nil {
				finish(res.code)
			}
			if res.err != nil {
				return res.err
			}
			rootExitCode = res.code
			return nil
		}
	}
}
