//go:build linux

package tracer

import (
	"fmt"
	"sort"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// struct seccomp_data field offsets (linux/seccomp.h).
const (
	seccompDataNr   = 0
	seccompDataArch = 4
)

// buildExecFilter assembles the classic-BPF program installed in each
// traced process: exec-family syscalls return SECCOMP_RET_TRACE and
// stop the tracee, everything else runs natively without a trace-stop.
// Non-native (compat) syscalls also trap, so a 32-bit exec can never
// slip past the tracer; the engine discards the stop if the trapped
// number doesn't decode as an exec call.
func buildExecFilter() ([]unix.SockFilter, error) {
	if err := archError(); err != nil {
		return nil, err
	}

	nrs := make([]uint32, 0, len(execSyscalls))
	for nr := range execSyscalls {
		nrs = append(nrs, uint32(nr))
	}
	sort.Slice(nrs, func(i, j int) bool { return nrs[i] < nrs[j] })

	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: seccompDataArch, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: seccompArch, SkipTrue: uint8(len(nrs) + 2)},
		bpf.LoadAbsolute{Off: seccompDataNr, Size: 4},
	}
	for i, nr := range nrs {
		insns = append(insns, bpf.JumpIf{Cond: bpf.JumpEqual, Val: nr, SkipTrue: uint8(len(nrs) - i)})
	}
	insns = append(insns,
		bpf.RetConstant{Val: unix.SECCOMP_RET_ALLOW},
		bpf.RetConstant{Val: unix.SECCOMP_RET_TRACE},
	)

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("assembling seccomp filter: %w", err)
	}
	prog := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		prog[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return prog, nil
}

// InstallExecFilter loads the exec-trap filter into the calling
// process. Runs inside the bootstrap stage of the traced child, after
// fork and before exec of the real command. Requires no_new_privs when
// the caller lacks CAP_SYS_ADMIN.
func InstallExecFilter() error {
	filter, err := buildExecFilter()
	if err != nil {
		return err
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	prog := unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER, 0, uintptr(unsafe.Pointer(&prog)))
	if errno != 0 {
		return fmt.Errorf("seccomp(SET_MODE_FILTER): %w", errno)
	}
	return nil
}
