// Package event defines the trace event stream shared by every tracing
// backend (ptrace engine, whole-system monitor) and its consumers
// (printer, TUI, session recorder). Backends produce immutable Event
// values; nothing else crosses the backend/consumer boundary.
package event

import "time"

// ExecData is an immutable snapshot of a single exec call's decoded
// arguments, exactly as passed to the syscall (the filename is not
// resolved against PATH or symlinks).
type ExecData struct {
	Filename string   `json:"filename"`
	Argv     []string `json:"argv"`
	Envp     []string `json:"envp"`

	// Truncated is set when an argv or envp walk hit the configured
	// element cap before reaching the NULL terminator.
	Truncated bool `json:"truncated,omitempty"`

	// DecodeErr records a remote memory read failure. The other fields
	// hold whatever was decoded before the failure.
	DecodeErr string `json:"decode_error,omitempty"`
}

// Partial reports whether this snapshot is incomplete for any reason.
func (d ExecData) Partial() bool {
	return d.Truncated || d.DecodeErr != ""
}

// Event is the sum type emitted by tracing backends. Exactly one of the
// concrete types below is sent per notification.
type Event interface {
	eventKind() string
}

// RootSpawned announces the root child's pid. It is the first event of a
// session and is emitted exactly once.
type RootSpawned struct {
	PID int `json:"pid"`
}

// Exec is a completed exec-family syscall: the decoded arguments paired
// with the syscall's return value (0 on success, -errno on failure).
type Exec struct {
	Timestamp time.Time `json:"timestamp"`
	PID       int       `json:"pid"`
	Comm      string    `json:"comm"`
	Data      ExecData  `json:"data"`
	Result    int64     `json:"result"`
}

// Exit reports that a traced process exited or was killed by a signal.
type Exit struct {
	PID    int    `json:"pid"`
	Status int    `json:"status"`
	Signal string `json:"signal,omitempty"`
}

// RootExit is the terminal event of a session: the root child is gone
// and no further events follow. ExitCode is what the tool itself should
// exit with.
type RootExit struct {
	ExitCode int `json:"exit_code"`
}

func (RootSpawned) eventKind() string { return "root_spawned" }
func (Exec) eventKind() string        { return "exec" }
func (Exit) eventKind() string        { return "exit" }
func (RootExit) eventKind() string    { return "root_exit" }

// Kind returns a stable name for the event's variant, used by the
// session store and structured logs.
func Kind(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventKind()
}
