// Package sysmon observes exec activity across the whole system using
// the kernel's proc connector. Unlike the ptrace engine it never stops
// or slows the observed processes, but it also cannot read syscall
// arguments: events are reconstructed from /proc immediately after each
// notification, so very short-lived processes may appear with partial
// data.
//
// Requires CAP_NET_ADMIN or root.
package sysmon

import "github.com/majorcontext/exectrace/internal/event"

// Config configures the monitor.
type Config struct {
	// RootPID limits events to this process and its descendants.
	// Zero observes every process on the system.
	RootPID int

	// FilterComm limits emitted events to listed comms; ExcludeComm
	// drops listed comms. Exclusion wins on conflict.
	FilterComm  []string
	ExcludeComm []string
}

// Monitor is a running whole-system observer. Events arrive on the
// queue passed to New; Stop closes it.
type Monitor interface {
	// Start begins observing.
	Start() error

	// Stop ends observing and closes the event queue.
	Stop() error
}

// New creates the platform's monitor implementation.
func New(cfg Config, queue *event.Queue) (Monitor, error) {
	return newMonitor(cfg, queue)
}

func commAllowed(cfg Config, comm string) bool {
	for _, c := range cfg.ExcludeComm {
		if c == comm {
			return false
		}
	}
	if len(cfg.FilterComm) == 0 {
		return true
	}
	for _, c := range cfg.FilterComm {
		if c == comm {
			return true
		}
	}
	return false
}
