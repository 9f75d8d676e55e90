//go:build linux

package tracer

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// RunBootstrap is the child side of a tracing session: it runs inside
// the freshly forked (and already ptrace-stopped-and-resumed) child,
// optionally installs the exec filter, then replaces itself with the
// target command. It only returns on error.
func RunBootstrap(argv []string, installFilter bool) error {
	if len(argv) == 0 {
		return &SpawnError{Command: "", Err: os.ErrInvalid}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return &SpawnError{Command: argv[0], Err: err}
	}
	if installFilter {
		if err := InstallExecFilter(); err != nil {
			return err
		}
	}
	return unix.Exec(path, argv, os.Environ())
}
