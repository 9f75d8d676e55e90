// Package tracer implements the ptrace-based exec tracing engine: it
// spawns a root process, follows its forking descendants, decodes every
// exec-family syscall's filename/argv/envp out of the tracee's address
// space, and emits events for consumers.
//
// The engine is synchronous and thread-affine: StartRootProcess locks
// its goroutine to an OS thread and blocks there for the whole session,
// because ptrace attachment is bound to the thread that performed it.
// All tracing state is owned by that thread; only immutable event
// values leave it, through an event.Queue.
package tracer

import (
	"os"

	"github.com/majorcontext/exectrace/internal/event"
)

// BootstrapName is the hidden argv[1] the engine uses when re-executing
// itself as the child-side bootstrap stage. main() dispatches on it
// before any CLI parsing.
const BootstrapName = "__exec-stage"

// BootstrapFilterFlag asks the stage to install the seccomp fast-path
// filter before handing off to the target.
const BootstrapFilterFlag = "--seccomp"

// SeccompMode controls the fast-path syscall filter.
type SeccompMode string

const (
	// SeccompAuto enables the filter when the platform supports it.
	SeccompAuto SeccompMode = "auto"
	// SeccompOn requires the filter; unsupported platforms fail at start.
	SeccompOn SeccompMode = "on"
	// SeccompOff traces every syscall and discards non-exec stops.
	SeccompOff SeccompMode = "off"
)

// Default caps for argv/envp pointer-array walks. A missing NULL
// terminator (corrupted or adversarial array) stops the walk here.
const (
	DefaultMaxArgs = 1024
	DefaultMaxEnv  = 1024
)

// Options configures a session before it starts.
type Options struct {
	// FollowForks traces children created by fork/vfork/clone. When
	// false only the root process is traced.
	FollowForks bool

	// Seccomp selects the fast-path filter mode.
	Seccomp SeccompMode

	// FilterComm, when non-empty, limits emitted exec events to
	// processes whose comm is in the list. ExcludeComm drops listed
	// comms. Exclusion wins on conflict.
	FilterComm  []string
	ExcludeComm []string

	// MaxArgs and MaxEnv cap the argv/envp walks. Zero means the
	// package defaults.
	MaxArgs int
	MaxEnv  int

	// Child stdio. Nil fields inherit the tracer's own streams.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// NewSession starts the child in its own session with its stdin as
	// the controlling terminal. Set when stdio is a pty slave.
	NewSession bool
}

// EventSink receives every emitted event synchronously on the engine
// thread, in emission order, before it is queued. Optional.
type EventSink func(event.Event)

// Tracer owns one tracing session. Create with New, run with
// StartRootProcess; a Tracer is not reusable.
type Tracer struct {
	opts  Options
	sink  EventSink
	queue *event.Queue

	table    *StateTable
	rootPID  int
	rootDone bool
	rootCode int
	seccomp  bool // filter active for this session
}

// New configures a session without starting it. sink may be nil; queue
// must not be.
func New(opts Options, sink EventSink, queue *event.Queue) *Tracer {
	if opts.MaxArgs <= 0 {
		opts.MaxArgs = DefaultMaxArgs
	}
	if opts.MaxEnv <= 0 {
		opts.MaxEnv = DefaultMaxEnv
	}
	if opts.Seccomp == "" {
		opts.Seccomp = SeccompAuto
	}
	return &Tracer{
		opts:  opts,
		sink:  sink,
		queue: queue,
		table: NewStateTable(),
	}
}

// emit delivers an event to the sink and the queue. Consumer loss is
// absorbed by the queue; emission never blocks the engine.
func (t *Tracer) emit(ev event.Event) {
	if t.sink != nil {
		t.sink(ev)
	}
	t.queue.Send(ev)
}

// commAllowed applies the FilterComm/ExcludeComm options.
func (t *Tracer) commAllowed(comm string) bool {
	for _, c := range t.opts.ExcludeComm {
		if c == comm {
			return false
		}
	}
	if len(t.opts.FilterComm) == 0 {
		return true
	}
	for _, c := range t.opts.FilterComm {
		if c == comm {
			return true
		}
	}
	return false
}
