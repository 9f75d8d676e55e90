// internal/tui/statusbar.go
package tui

import (
	"fmt"
	"strings"
	"sync"
)

// StatusBar renders live tracing state at the bottom of the terminal.
// Counters are updated from the event consumer while the writer renders
// from output goroutines, so all access is locked.
type StatusBar struct {
	mu      sync.Mutex
	command string // traced command, shown right-aligned
	mode    string // "seccomp" or "ptrace"
	width   int
	height  int

	execs    int
	procs    int
	lastComm string // comm of the most recent exec

	message string // overlay message, replaces normal content when set
}

// NewStatusBar creates a status bar for a traced command.
func NewStatusBar(command, mode string) *StatusBar {
	return &StatusBar{
		command: command,
		mode:    mode,
		width:   80, // default
	}
}

// SetCounters updates the live exec/process counters.
func (s *StatusBar) SetCounters(execs, procs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = execs
	s.procs = procs
}

// SetLastExec records the comm of the most recent exec.
func (s *StatusBar) SetLastExec(comm string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastComm = comm
}

// SetMessage replaces the normal content with an overlay message until
// ClearMessage is called. Used for transient prompts like the escape help.
func (s *StatusBar) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
}

// ClearMessage restores the normal status bar content.
func (s *StatusBar) ClearMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = ""
}

// SetDimensions sets terminal width and height.
func (s *StatusBar) SetDimensions(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

// Render returns the full status bar with ANSI escapes for positioning.
// The caller is responsible for cursor positioning after calling Render.
func (s *StatusBar) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.height <= 0 {
		return ""
	}
	// Move to bottom row, clear line, draw bar.
	// Note: No save/restore cursor here - Writer.renderLocked() handles cursor
	// positioning explicitly to avoid double cursor artifacts.
	return fmt.Sprintf("\x1b[%d;1H\x1b[2K%s", s.height, s.contentLocked())
}

// ANSI escape sequences for status bar styling.
const (
	bgDarkGray = "\x1b[48;5;236m"
	fgCyan     = "\x1b[36m"
	fgMagenta  = "\x1b[35m"
	bold       = "\x1b[1m"
	dim        = "\x1b[2m"
	reset      = "\x1b[0m"
)

// modeColor returns the ANSI color code for the tracing mode.
func modeColor(mode string) string {
	switch mode {
	case "seccomp":
		return fgCyan
	case "ptrace":
		return fgMagenta
	default:
		return ""
	}
}

// Content returns the status bar content string (with ANSI styling).
func (s *StatusBar) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentLocked()
}

func (s *StatusBar) contentLocked() string {
	if s.message != "" {
		return s.messageContent()
	}
	return s.buildContent(true, true, true)
}

// messageContent renders the overlay message centered on the bar,
// truncated to the terminal width.
func (s *StatusBar) messageContent() string {
	msg := s.message
	if runeLen(msg)+2 > s.width {
		r := []rune(msg)
		keep := s.width - 2
		if keep < 0 {
			keep = 0
		}
		msg = string(r[:keep])
	}
	pad := s.width - runeLen(msg)
	left := pad / 2
	right := pad - left

	var buf strings.Builder
	buf.WriteString(bgDarkGray)
	buf.WriteString(strings.Repeat(" ", left))
	buf.WriteString(bold)
	buf.WriteString(msg)
	buf.WriteString(reset)
	buf.WriteString(bgDarkGray)
	buf.WriteString(strings.Repeat(" ", right))
	buf.WriteString(reset)
	return buf.String()
}

// buildContent constructs the status bar with optional counters, hint,
// and command segments.
func (s *StatusBar) buildContent(showCounters, showHint, showCommand bool) string {
	// Build left segments (plain text for measurement)
	leftPlain := " exectrace "
	modePlain := ""
	if s.mode != "" {
		modePlain = " " + s.mode + " "
	}
	countersPlain := ""
	if showCounters {
		countersPlain = fmt.Sprintf(" %d execs · %d procs ", s.execs, s.procs)
		if s.lastComm != "" {
			countersPlain += "· " + s.lastComm + " "
		}
	}
	hintPlain := ""
	if showHint {
		hintPlain = "(ctrl+/) "
	}

	// Build right segment
	var rightPlain string
	if showCommand && s.command != "" {
		rightPlain = " " + s.command + " "
	}

	totalPlain := runeLen(leftPlain) + runeLen(modePlain) + runeLen(countersPlain) + runeLen(hintPlain) + runeLen(rightPlain)

	if totalPlain > s.width {
		// Truncation cascade: hint first, then command, then counters
		if showHint {
			return s.buildContent(showCounters, false, showCommand)
		}
		if showCommand && s.command != "" {
			return s.buildContent(showCounters, false, false)
		}
		if showCounters {
			return s.buildContent(false, false, false)
		}
		if runeLen(leftPlain)+runeLen(modePlain) > s.width {
			// Just spaces
			return bgDarkGray + strings.Repeat(" ", s.width) + reset
		}
	}

	// Build styled content
	middleLen := s.width - totalPlain
	if middleLen < 0 {
		middleLen = 0
	}

	var buf strings.Builder
	buf.WriteString(bgDarkGray)
	buf.WriteString(bold)
	buf.WriteString(leftPlain)
	buf.WriteString(reset)
	buf.WriteString(bgDarkGray)

	if modePlain != "" {
		color := modeColor(s.mode)
		if color != "" {
			buf.WriteString(color)
		}
		buf.WriteString(modePlain)
		if color != "" {
			buf.WriteString(reset)
			buf.WriteString(bgDarkGray)
		}
	}

	if countersPlain != "" {
		buf.WriteString(dim)
		buf.WriteString(countersPlain)
		buf.WriteString(reset)
		buf.WriteString(bgDarkGray)
	}

	if hintPlain != "" {
		buf.WriteString(dim)
		buf.WriteString(hintPlain)
		buf.WriteString(reset)
		buf.WriteString(bgDarkGray)
	}

	buf.WriteString(strings.Repeat(" ", middleLen))
	buf.WriteString(rightPlain)
	buf.WriteString(reset)

	return buf.String()
}

// runeLen returns the display width of a string (counting runes).
func runeLen(s string) int {
	return len([]rune(s))
}
