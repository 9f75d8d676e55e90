package tracer

import "github.com/majorcontext/exectrace/internal/event"

// Stage is a traced process's position in its exec lifecycle.
type Stage int

const (
	// StageSpawned: seen (spawned or forked) but no exec observed yet.
	StageSpawned Stage = iota
	// StageSyscallEntered: inside an exec-family syscall; a decode is buffered.
	StageSyscallEntered
	// StageAwaitingExit: at least one exec completed; running until exit.
	StageAwaitingExit
	// StageExited: gone. Entries never hold this stage in the table; it
	// exists so callers can report a final transition.
	StageExited
)

func (s Stage) String() string {
	switch s {
	case StageSpawned:
		return "spawned"
	case StageSyscallEntered:
		return "syscall-entered"
	case StageAwaitingExit:
		return "awaiting-exit"
	case StageExited:
		return "exited"
	}
	return "unknown"
}

// ProcessState is one live traced process. Owned exclusively by the
// engine thread; never shared.
type ProcessState struct {
	PID  int
	Gen  uint64 // table-wide monotonic; distinguishes reused pids
	Comm string
	Stage Stage

	// Exec holds the decoded exec-entry payload between syscall entry
	// and the matching exit. Nil in every other stage.
	Exec *event.ExecData

	// inSyscall is the ptrace syscall-stop parity bit: false means the
	// next syscall stop for this pid is an entry.
	inSyscall bool

	// suppressStop marks a process whose attach-time SIGSTOP has not
	// been seen yet; that one stop is swallowed instead of forwarded.
	suppressStop bool
}

// EnterExec records a decoded exec-entry payload. Legal from
// StageSpawned (first exec) and StageAwaitingExit (re-exec).
func (p *ProcessState) EnterExec(data event.ExecData) {
	p.Stage = StageSyscallEntered
	p.Exec = &data
}

// CompleteExec consumes the buffered entry payload at syscall exit,
// moving to StageAwaitingExit. Returns nil if no exec was in flight,
// which callers treat as "nothing to emit".
func (p *ProcessState) CompleteExec() *event.ExecData {
	if p.Stage != StageSyscallEntered {
		return nil
	}
	data := p.Exec
	p.Exec = nil
	p.Stage = StageAwaitingExit
	return data
}

// StateTable maps pids to per-process state. Exclusively owned and
// mutated by the engine's driving loop.
type StateTable struct {
	procs   map[int]*ProcessState
	nextGen uint64
}

// NewStateTable creates an empty table.
func NewStateTable() *StateTable {
	return &StateTable{procs: make(map[int]*ProcessState)}
}

// Get returns the entry for pid, or nil.
func (t *StateTable) Get(pid int) *ProcessState {
	return t.procs[pid]
}

// Ensure returns the entry for pid, creating one on first sighting.
// A new entry gets a fresh generation, so a reused pid is never
// conflated with an exited process that happened to share its number.
func (t *StateTable) Ensure(pid int, comm string) *ProcessState {
	if p, ok := t.procs[pid]; ok {
		return p
	}
	t.nextGen++
	p := &ProcessState{PID: pid, Gen: t.nextGen, Comm: comm, Stage: StageSpawned, suppressStop: true}
	t.procs[pid] = p
	return p
}

// Fork registers a child created by a fork/clone notification. The
// child inherits the parent's comm until its own first exec. If the
// child was already sighted (its initial stop can arrive before the
// parent's fork event), only the comm is backfilled.
func (t *StateTable) Fork(parentPID, childPID int) *ProcessState {
	comm := ""
	if parent := t.procs[parentPID]; parent != nil {
		comm = parent.Comm
	}
	if child, ok := t.procs[childPID]; ok {
		if child.Comm == "" {
			child.Comm = comm
		}
		return child
	}
	return t.Ensure(childPID, comm)
}

// Remove drops the entry for pid, returning it (nil if absent). Exited,
// reaped processes must be removed to keep memory bounded.
func (t *StateTable) Remove(pid int) *ProcessState {
	p := t.procs[pid]
	if p != nil {
		delete(t.procs, pid)
		p.Stage = StageExited
	}
	return p
}

// Len returns the number of live entries.
func (t *StateTable) Len() int { return len(t.procs) }
