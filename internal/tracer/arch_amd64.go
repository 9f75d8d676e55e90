//go:build linux && amd64

package tracer

import "golang.org/x/sys/unix"

// seccompArch is the AUDIT_ARCH value the kernel reports in
// seccomp_data for native syscalls on this platform.
const seccompArch = unix.AUDIT_ARCH_X86_64

var execSyscalls = map[uint64]execCall{
	unix.SYS_EXECVE:   {name: "execve", pathArg: 0, argvArg: 1, envpArg: 2},
	unix.SYS_EXECVEAT: {name: "execveat", pathArg: 1, argvArg: 2, envpArg: 3},
}

func archError() error { return nil }

func syscallNumber(regs *unix.PtraceRegs) uint64 { return regs.Orig_rax }

func syscallArgs(regs *unix.PtraceRegs) [6]uint64 {
	return [6]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9}
}

func syscallResult(regs *unix.PtraceRegs) int64 { return int64(regs.Rax) }
