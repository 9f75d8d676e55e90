//go:build linux && !amd64 && !arm64

package tracer

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Unknown architectures fail closed at session start rather than
// tracing with wrong syscall numbers.

const seccompArch = 0

var execSyscalls = map[uint64]execCall{}

func archError() error {
	return &UnsupportedArchitectureError{Arch: runtime.GOARCH}
}

func syscallNumber(regs *unix.PtraceRegs) uint64   { return 0 }
func syscallArgs(regs *unix.PtraceRegs) [6]uint64  { return [6]uint64{} }
func syscallResult(regs *unix.PtraceRegs) int64    { return 0 }
