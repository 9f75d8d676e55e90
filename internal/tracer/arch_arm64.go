//go:build linux && arm64

package tracer

import "golang.org/x/sys/unix"

// seccompArch is the AUDIT_ARCH value the kernel reports in
// seccomp_data for native syscalls on this platform.
const seccompArch = unix.AUDIT_ARCH_AARCH64

var execSyscalls = map[uint64]execCall{
	unix.SYS_EXECVE:   {name: "execve", pathArg: 0, argvArg: 1, envpArg: 2},
	unix.SYS_EXECVEAT: {name: "execveat", pathArg: 1, argvArg: 2, envpArg: 3},
}

func archError() error { return nil }

// Syscall number lives in x8 at entry; arguments in x0-x5; the result
// replaces x0 at exit.

func syscallNumber(regs *unix.PtraceRegs) uint64 { return regs.Regs[8] }

func syscallArgs(regs *unix.PtraceRegs) [6]uint64 {
	return [6]uint64{regs.Regs[0], regs.Regs[1], regs.Regs[2], regs.Regs[3], regs.Regs[4], regs.Regs[5]}
}

func syscallResult(regs *unix.PtraceRegs) int64 { return int64(regs.Regs[0]) }
