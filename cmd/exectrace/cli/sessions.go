package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/majorcontext/exectrace/internal/config"
	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/printer"
	"github.com/majorcontext/exectrace/internal/session"
	"github.com/spf13/cobra"
)

var sessionsShowEnv bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and replay recorded sessions",
	Long: `Work with sessions recorded via --record.

Examples:
  exectrace sessions list
  exectrace sessions show 3`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Replay a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsShowCmd.Flags().BoolVar(&sessionsShowEnv, "env", false, "print the full environment of each exec")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := session.Open(config.SessionDBPath())
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions. Run with --record to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tEVENTS\tEXIT\tCOMMAND")
	for _, s := range sessions {
		duration := "-"
		exit := "-"
		if !s.FinishedAt.IsZero() {
			duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
			exit = strconv.Itoa(s.ExitCode)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			s.EventCount,
			exit,
			strings.Join(s.Command, " "))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}

	store, err := session.Open(config.SessionDBPath())
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	s, err := store.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("session %d not found", id)
		}
		return err
	}

	events, err := store.Events(id)
	if err != nil {
		return err
	}

	fmt.Printf("session %d: %s (started %s)\n", s.ID,
		strings.Join(s.Command, " "),
		s.StartedAt.Local().Format("2006-01-02 15:04:05"))

	// The recording environment baseline is gone, so replay cannot diff.
	opts := printer.DefaultOptions()
	opts.DiffEnv = false
	opts.Env = sessionsShowEnv
	opts.Color = colorEnabled(os.Stdout)
	p := printer.New(os.Stdout, event.BaselineInfo{}, opts)

	for _, ev := range events {
		if err := p.HandleEvent(ev); err != nil {
			return err
		}
	}

	if !s.FinishedAt.IsZero() {
		fmt.Printf("exit code %d after %s\n", s.ExitCode,
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	return nil
}
