//go:build linux

package tracer

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Remote reads use process_vm_readv in fixed-size chunks. A chunk is
// clamped so it never crosses a page boundary: the kernel fails the
// whole transfer if any page in the span is unmapped, and a string can
// legally end just before an unmapped page.
const (
	memChunk   = 256
	maxStrLen  = 4096
	ptrSize    = 8 // amd64 and arm64
	ptrChunk   = 16
)

var pageSize = uintptr(unix.Getpagesize())

// readRemote fills buf from the target's address space. Short reads are
// not retried; the caller sizes buf to stay within one page.
func readRemote(pid int, addr uintptr, buf []byte) (int, error) {
	local := unix.Iovec{Base: &buf[0]}
	local.SetLen(len(buf))
	remote := unix.RemoteIovec{Base: addr, Len: len(buf)}
	n, err := unix.ProcessVMReadv(pid, []unix.Iovec{local}, []unix.RemoteIovec{remote}, 0)
	if err != nil {
		return 0, &MemoryReadError{PID: pid, Addr: addr, Err: err}
	}
	if n == 0 {
		return 0, &MemoryReadError{PID: pid, Addr: addr, Err: unix.EFAULT}
	}
	return n, nil
}

// readCString reads a NUL-terminated string at addr, at most max bytes.
// Overlong strings are truncated without error.
func readCString(pid int, addr uintptr, max int) (string, error) {
	var out []byte
	for len(out) < max {
		chunk := memChunk
		if rem := int(pageSize - addr%pageSize); chunk > rem {
			chunk = rem
		}
		if rem := max - len(out); chunk > rem {
			chunk = rem
		}
		buf := make([]byte, chunk)
		n, err := readRemote(pid, addr, buf)
		if err != nil {
			if len(out) > 0 {
				// Partial string decoded before the failure.
				return string(out), err
			}
			return "", err
		}
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf[:n]...)
		addr += uintptr(n)
	}
	return string(out), nil
}

// readPtrArray reads a NULL-terminated array of remote pointers at
// addr, stopping at the terminator or after max elements. The second
// return value is true when the cap was hit before the terminator.
func readPtrArray(pid int, addr uintptr, max int) ([]uintptr, bool, error) {
	var ptrs []uintptr
	buf := make([]byte, ptrChunk*ptrSize)
	for len(ptrs) < max {
		want := len(buf)
		if rem := int(pageSize - addr%pageSize); want > rem {
			// Stay within the page; pointer arrays are 8-byte aligned
			// so rem is always a multiple of ptrSize.
			want = rem
		}
		n, err := readRemote(pid, addr, buf[:want])
		if err != nil {
			return ptrs, false, err
		}
		n -= n % ptrSize
		if n == 0 {
			return ptrs, false, &MemoryReadError{PID: pid, Addr: addr, Err: unix.EFAULT}
		}
		for off := 0; off < n; off += ptrSize {
			p := uintptr(binary.NativeEndian.Uint64(buf[off : off+ptrSize]))
			if p == 0 {
				return ptrs, false, nil
			}
			ptrs = append(ptrs, p)
			if len(ptrs) == max {
				return ptrs, true, nil
			}
		}
		addr += uintptr(n)
	}
	return ptrs, true, nil
}
