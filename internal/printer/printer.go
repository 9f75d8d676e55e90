// Package printer renders exec events as human-readable trace lines,
// one per completed exec, in the style:
//
//	1234<bash>: "/bin/ls" ["ls", "-la"] [+"K"="v", -"OLD"="x", ]
//
// Environments are shown as a diff against the tracer's own baseline by
// default; failed execs carry their decoded errno.
package printer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"

	"github.com/majorcontext/exectrace/internal/event"
)

// Options selects which parts of an exec event are rendered.
type Options struct {
	// Comm, Filename and Argv toggle the corresponding line segments.
	Comm     bool
	Filename bool
	Argv     bool

	// Env prints the full envp. DiffEnv prints changes against the
	// baseline instead; Env wins when both are set.
	Env     bool
	DiffEnv bool

	// DecodeErrno renders failed exec results as errno names.
	DecodeErrno bool

	// Color enables ANSI styling. Callers decide based on the output
	// being a terminal.
	Color bool
}

// DefaultOptions is the rendering used by the log command with no flags.
func DefaultOptions() Options {
	return Options{
		Comm:        true,
		Filename:    true,
		Argv:        true,
		DiffEnv:     true,
		DecodeErrno: true,
	}
}

// Printer writes trace lines to a single output. Safe for one writer
// goroutine; Print locks so interleaved use stays line-atomic.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	opts     Options
	baseline event.BaselineInfo

	pidColor    *color.Color
	commColor   *color.Color
	addMark     *color.Color
	modMark     *color.Color
	delMark     *color.Color
	addedEnv    *color.Color
	modifiedEnv *color.Color
	removedEnv  *color.Color
}

// New creates a Printer writing to out, diffing environments against
// baseline.
func New(out io.Writer, baseline event.BaselineInfo, opts Options) *Printer {
	p := &Printer{
		out:         out,
		opts:        opts,
		baseline:    baseline,
		pidColor:    color.New(color.FgYellow),
		commColor:   color.New(color.FgCyan),
		addMark:     color.New(color.FgHiGreen, color.Bold),
		modMark:     color.New(color.FgHiYellow, color.Bold),
		delMark:     color.New(color.FgHiRed, color.Bold),
		addedEnv:    color.New(color.FgGreen),
		modifiedEnv: color.New(color.FgBlue),
		removedEnv:  color.New(color.FgRed, color.CrossedOut),
	}
	for _, c := range []*color.Color{
		p.pidColor, p.commColor, p.addMark, p.modMark, p.delMark,
		p.addedEnv, p.modifiedEnv, p.removedEnv,
	} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// HandleEvent renders the events a line printer cares about. Lifecycle
// events other than exec completions are ignored.
func (p *Printer) HandleEvent(ev event.Event) error {
	e, ok := ev.(event.Exec)
	if !ok {
		return nil
	}
	return p.Print(e)
}

// Print writes one trace line for a completed exec.
func (p *Printer) Print(e event.Exec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString(p.pidColor.Sprint(e.PID))
	if p.opts.Comm {
		b.WriteString("<")
		b.WriteString(p.commColor.Sprint(e.Comm))
		b.WriteString(">")
	}
	b.WriteString(":")
	if p.opts.Filename {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(e.Data.Filename))
	}
	if p.opts.Argv {
		b.WriteString(" ")
		b.WriteString(quoteList(e.Data.Argv, e.Data.Truncated))
	}

	switch {
	case p.opts.Env:
		b.WriteString(" ")
		b.WriteString(quoteList(e.Data.Envp, e.Data.Truncated))
	case p.opts.DiffEnv:
		p.writeEnvDiff(&b, e.Data.Envp)
	}

	if e.Data.DecodeErr != "" {
		fmt.Fprintf(&b, " <incomplete: %s>", e.Data.DecodeErr)
	}

	if e.Result != 0 {
		if p.opts.DecodeErrno {
			fmt.Fprintf(&b, " = %d (%s)", e.Result, errnoName(e.Result))
		} else {
			fmt.Fprintf(&b, " = %d", e.Result)
		}
	}

	b.WriteString("\n")
	_, err := io.WriteString(p.out, b.String())
	return err
}

// writeEnvDiff renders environment changes in brackets: modified with
// an M marker, added with +, removed (relative to the baseline) with -.
func (p *Printer) writeEnvDiff(b *strings.Builder, envp []string) {
	diff := p.baseline.DiffEnv(envp)
	if diff.Empty() {
		return
	}
	b.WriteString(" [")
	for _, v := range diff.Modified {
		b.WriteString(p.modMark.Sprint("M"))
		fmt.Fprintf(b, "%s=%s, ", strconv.Quote(v.Key), p.modifiedEnv.Sprint(strconv.Quote(v.Value)))
	}
	for _, v := range diff.Added {
		b.WriteString(p.addMark.Sprint("+"))
		b.WriteString(p.addedEnv.Sprintf("%s=%s", strconv.Quote(v.Key), strconv.Quote(v.Value)))
		b.WriteString(", ")
	}
	for _, v := range diff.Removed {
		b.WriteString(p.delMark.Sprint("-"))
		b.WriteString(p.removedEnv.Sprintf("%s=%s", strconv.Quote(v.Key), strconv.Quote(v.Value)))
		b.WriteString(", ")
	}
	b.WriteString("]")
}

// quoteList renders a string slice the way argv reads best in a trace
// line. truncated appends an ellipsis marker for capped walks.
func quoteList(items []string, truncated bool) string {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(s))
	}
	if truncated {
		if len(items) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteString("]")
	return b.String()
}

// errnoName names the errno of a failed exec result (a negated errno).
func errnoName(result int64) string {
	name := unix.ErrnoName(syscall.Errno(-result))
	if name == "" {
		return "errno " + strconv.FormatInt(-result, 10)
	}
	return name
}
