//go:build !windows

package term

import (
	"os"

	"golang.org/x/term"
)

// RawModeState remembers the terminal settings in force before the
// tui took over, so detach and exit can hand the shell back intact.
type RawModeState struct {
	fd       int
	oldState *term.State
}

// EnableRawMode switches the terminal to raw mode so keystrokes reach
// the escape proxy byte by byte, unechoed. The returned state must be
// passed to RestoreTerminal when the session ends.
func EnableRawMode(f *os.File) (*RawModeState, error) {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawModeState{fd: fd, oldState: oldState}, nil
}

// RestoreTerminal undoes EnableRawMode. Nil state is a no-op.
func RestoreTerminal(state *RawModeState) error {
	if state == nil || state.oldState == nil {
		return nil
	}
	return term.Restore(state.fd, state.oldState)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// GetSize returns the terminal dimensions, or (0, 0) when f is not a
// terminal. Callers fall back to 80x24.
func GetSize(f *os.File) (width, height int) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0
	}
	return w, h
}
