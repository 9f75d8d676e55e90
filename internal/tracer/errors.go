package tracer

import "fmt"

// SpawnError means the root child could not be started at all. Fatal.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// AttachError means the tracing session could not be established or
// maintained against the root child. Fatal.
type AttachError struct {
	PID int
	Op  string
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("%s pid %d: %v", e.Op, e.PID, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// MemoryReadError is a failed remote memory read, typically a race with
// the target exiting mid-decode or an unmapped address. Recoverable: the
// affected event carries partial data and this error's message.
type MemoryReadError struct {
	PID  int
	Addr uintptr
	Err  error
}

func (e *MemoryReadError) Error() string {
	return fmt.Sprintf("reading pid %d memory at %#x: %v", e.PID, e.Addr, e.Err)
}

func (e *MemoryReadError) Unwrap() error { return e.Err }

// UnsupportedArchitectureError is returned at session start when the
// host architecture has no syscall table here. Fails closed rather than
// tracing with wrong syscall numbers.
type UnsupportedArchitectureError struct {
	Arch string
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("architecture %s is not supported for exec tracing", e.Arch)
}
