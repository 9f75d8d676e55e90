//go:build linux

package tracer

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/proc"
)

// StartRootProcess spawns the traced command and drives the ptrace
// session to completion. It blocks the calling goroutine, locked to its
// OS thread, until the root child has exited (or attach fails). The
// returned int is the root's exit code.
//
// The child is spawned as a re-exec of this binary (the bootstrap
// stage), so the exec of the real command happens under tracing and is
// observed like any other exec.
func (t *Tracer) StartRootProcess(argv []string) (int, error) {
	// ptrace attachment is bound to the attaching thread; every wait
	// and resume below must come from this one.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// The consumer learns of abnormal termination by the queue closing
	// without a root-exit event. Close is idempotent, so the normal
	// path's close in handleExit is unaffected.
	defer t.queue.Close()

	if err := archError(); err != nil {
		return 0, err
	}
	if len(argv) == 0 {
		return 0, &SpawnError{Command: "", Err: os.ErrInvalid}
	}
	t.seccomp = t.opts.Seccomp != SeccompOff

	stageArgs := []string{BootstrapName}
	if t.seccomp {
		stageArgs = append(stageArgs, BootstrapFilterFlag)
	}
	stageArgs = append(stageArgs, argv...)

	cmd := exec.Command("/proc/self/exe", stageArgs...)
	cmd.Stdin = fileOr(t.opts.Stdin, os.Stdin)
	cmd.Stdout = fileOr(t.opts.Stdout, os.Stdout)
	cmd.Stderr = fileOr(t.opts.Stderr, os.Stderr)
	attr := &syscall.SysProcAttr{Ptrace: true}
	if t.opts.NewSession {
		// Child stdio is a pty slave; make it the controlling terminal.
		attr.Setsid = true
		attr.Setctty = true
		attr.Ctty = 0
	}
	cmd.SysProcAttr = attr

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Command: argv[0], Err: err}
	}
	root := cmd.Process.Pid
	t.rootPID = root
	log.Debug("root child spawned", "pid", root, "command", argv, "seccomp", t.seccomp)

	// The child stops with SIGTRAP once it has exec'd the bootstrap
	// stage; options must be set during that stop.
	var ws unix.WaitStatus
	if _, err := unix.Wait4(root, &ws, 0, nil); err != nil {
		return 0, &AttachError{PID: root, Op: "wait4", Err: err}
	}
	ptraceOpts := unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_TRACEEXEC | unix.PTRACE_O_EXITKILL
	if t.opts.FollowForks {
		ptraceOpts |= unix.PTRACE_O_TRACEFORK | unix.PTRACE_O_TRACEVFORK | unix.PTRACE_O_TRACECLONE
	}
	if t.seccomp {
		ptraceOpts |= unix.PTRACE_O_TRACESECCOMP
	}
	if err := unix.PtraceSetOptions(root, ptraceOpts); err != nil {
		return 0, &AttachError{PID: root, Op: "ptrace setoptions", Err: err}
	}

	st := t.table.Ensure(root, proc.Comm(root))
	st.suppressStop = false // root's attach stop was the SIGTRAP above
	t.emit(event.RootSpawned{PID: root})
	t.resume(st, 0)

	return t.loop()
}

func fileOr(f, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}

// loop blocks on kernel notifications until the root child is done.
// There are deliberately no timeouts: the kernel is the only source of
// progress for this thread.
func (t *Tracer) loop() (int, error) {
	for !t.rootDone {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// ECHILD without a root exit means the session collapsed
			// from under us.
			t.queue.Close()
			return 0, &AttachError{PID: t.rootPID, Op: "wait4", Err: err}
		}

		switch {
		case ws.Exited():
			t.handleExit(pid, ws.ExitStatus(), "")
		case ws.Signaled():
			sig := ws.Signal()
			t.handleExit(pid, 128+int(sig), unix.SignalName(sig))
		case ws.Stopped():
			t.handleStop(pid, ws)
		}
	}
	return t.rootCode, nil
}

// handleStop classifies a trace-stop and advances the state table.
func (t *Tracer) handleStop(pid int, ws unix.WaitStatus) {
	st := t.table.Get(pid)
	if st == nil {
		// First sighting: an auto-attached child can stop before its
		// parent's fork event is processed.
		st = t.table.Ensure(pid, proc.Comm(pid))
	}

	sig := ws.StopSignal()
	deliver := 0
	switch {
	case sig == unix.SIGTRAP|0x80:
		t.handleSyscallStop(st)
	case sig == unix.SIGTRAP:
		switch ws.TrapCause() {
		case unix.PTRACE_EVENT_SECCOMP:
			t.handleSeccompStop(st)
		case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
			if msg, err := unix.PtraceGetEventMsg(pid); err == nil {
				child := t.table.Fork(pid, int(msg))
				log.Debug("child forked", "parent", pid, "child", child.PID, "gen", child.Gen)
			}
		case unix.PTRACE_EVENT_EXEC:
			st.Comm = proc.Comm(pid)
		default:
			// A SIGTRAP the program raised itself; forward it.
			deliver = int(sig)
		}
	case sig == unix.SIGSTOP && st.suppressStop:
		// The attach stop of a freshly cloned child; swallow it.
		st.suppressStop = false
	default:
		deliver = int(sig)
	}
	t.resume(st, deliver)
}

// handleSyscallStop processes a syscall-entry or syscall-exit stop. The
// per-process parity bit tells them apart; event stops in between do
// not toggle it.
func (t *Tracer) handleSyscallStop(st *ProcessState) {
	pid := st.PID
	if !st.inSyscall {
		st.inSyscall = true
		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err != nil {
			log.Debug("getregs failed at syscall entry", "pid", pid, "error", err)
			return
		}
		if call, ok := execSyscalls[syscallNumber(&regs)]; ok {
			st.EnterExec(t.decodeExec(pid, call, &regs))
		}
		return
	}

	st.inSyscall = false
	if st.Stage != StageSyscallEntered {
		return
	}
	var result int64
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err == nil {
		result = syscallResult(&regs)
	} else {
		result = -int64(unix.ESRCH)
	}
	t.finishExec(st, result)
}

// handleSeccompStop is the fast path: the filter trapped an exec-family
// entry, so decode now and step to the syscall exit for the result.
func (t *Tracer) handleSeccompStop(st *ProcessState) {
	pid := st.PID
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		log.Debug("getregs failed at seccomp stop", "pid", pid, "error", err)
		return
	}
	call, ok := execSyscalls[syscallNumber(&regs)]
	if !ok {
		// Compat-arch trap; not an exec we decode. Let it run.
		return
	}
	st.EnterExec(t.decodeExec(pid, call, &regs))
	st.inSyscall = true
}

// finishExec pairs the buffered entry decode with the syscall's return
// value and emits the completed event.
func (t *Tracer) finishExec(st *ProcessState, result int64) {
	data := st.CompleteExec()
	if data == nil {
		return
	}
	if !t.commAllowed(st.Comm) {
		return
	}
	t.emit(event.Exec{
		Timestamp: time.Now(),
		PID:       st.PID,
		Comm:      st.Comm,
		Data:      *data,
		Result:    result,
	})
}

// handleExit records a process's departure. Safe to call twice for the
// same pid (a resume race synthesizes an exit the kernel may later
// report for real); only the first call emits.
func (t *Tracer) handleExit(pid int, status int, sig string) {
	existed := t.table.Remove(pid) != nil
	isRoot := pid == t.rootPID
	if !existed && !isRoot {
		return
	}
	if isRoot && t.rootDone {
		return
	}

	t.emit(event.Exit{PID: pid, Status: status, Signal: sig})
	log.Debug("process exited", "pid", pid, "status", status, "signal", sig, "tracked", t.table.Len())

	if isRoot {
		t.rootDone = true
		t.rootCode = status
		t.emit(event.RootExit{ExitCode: status})
		t.queue.Close()
	}
}

// resume restarts a stopped tracee, forwarding sig if a real signal
// caused the stop. In fast-path mode processes run under PTRACE_CONT
// except while an exec is in flight, where a syscall-step captures the
// return value.
func (t *Tracer) resume(st *ProcessState, sig int) {
	var err error
	if t.seccomp && st.Stage != StageSyscallEntered {
		err = unix.PtraceCont(st.PID, sig)
	} else {
		err = unix.PtraceSyscall(st.PID, sig)
	}
	if err == nil {
		return
	}
	if errors.Is(err, unix.ESRCH) {
		// It raced to exit before the resume landed; treat as an
		// implicit exit notification. Status is unknown here.
		log.Debug("resume raced with exit", "pid", st.PID)
		t.handleExit(st.PID, -1, "")
		return
	}
	log.Warn("failed to resume tracee", "pid", st.PID, "error", err)
}
