//go:build !linux

package tracer

import "errors"

// StartRootProcess is Linux-only; ptrace exec tracing has no equivalent
// on other platforms.
func (t *Tracer) StartRootProcess(argv []string) (int, error) {
	t.queue.Close()
	return 0, errors.New("exec tracing requires Linux")
}

// RunBootstrap never runs off Linux; the stage argv is only produced by
// a Linux tracer.
func RunBootstrap(argv []string, installFilter bool) error {
	return errors.New("exec tracing requires Linux")
}
