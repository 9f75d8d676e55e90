//go:build linux

package tracer

import (
	"github.com/majorcontext/exectrace/internal/event"
	"golang.org/x/sys/unix"
)

// execCall describes where an exec-family syscall keeps its
// filename/argv/envp pointers among the entry arguments.
type execCall struct {
	name    string
	pathArg int
	argvArg int
	envpArg int
}

// decodeExec reconstructs an ExecData from exec-entry registers.
// Fail-soft: a remote read failure stops decoding and the snapshot
// carries whatever was recovered plus the failure message. The filename
// is resolved first (cheapest, most likely to succeed), then argv,
// then envp.
func (t *Tracer) decodeExec(pid int, call execCall, regs *unix.PtraceRegs) event.ExecData {
	args := syscallArgs(regs)
	var data event.ExecData

	filename, err := readCString(pid, uintptr(args[call.pathArg]), maxStrLen)
	data.Filename = filename
	if err != nil {
		data.DecodeErr = err.Error()
		return data
	}

	argv, truncated, err := t.readStringArray(pid, uintptr(args[call.argvArg]), t.opts.MaxArgs)
	data.Argv = argv
	data.Truncated = truncated
	if err != nil {
		data.DecodeErr = err.Error()
		return data
	}

	envp, truncated, err := t.readStringArray(pid, uintptr(args[call.envpArg]), t.opts.MaxEnv)
	data.Envp = envp
	data.Truncated = data.Truncated || truncated
	if err != nil {
		data.DecodeErr = err.Error()
	}
	return data
}

// readStringArray dereferences every element of a remote NULL-terminated
// pointer array into strings. Partial results are returned alongside the
// error that stopped the walk.
func (t *Tracer) readStringArray(pid int, addr uintptr, max int) ([]string, bool, error) {
	if addr == 0 {
		// execve(path, NULL, NULL) is legal.
		return nil, false, nil
	}
	ptrs, truncated, err := readPtrArray(pid, addr, max)
	out := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		s, serr := readCString(pid, p, maxStrLen)
		if serr != nil {
			if s != "" {
				out = append(out, s)
			}
			return out, truncated, serr
		}
		out = append(out, s)
	}
	return out, truncated, err
}
