// Package proc reads process metadata from the /proc filesystem. All
// lookups are best-effort: a process can exit between the caller
// deciding to look and the read happening, so missing entries are
// reported as zero values rather than errors where a fallback exists.
package proc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func pidPath(pid int, parts ...string) string {
	return filepath.Join(append([]string{"/proc", strconv.Itoa(pid)}, parts...)...)
}

// Comm returns the short process name from /proc/<pid>/comm, or "".
func Comm(pid int) string {
	data, err := os.ReadFile(pidPath(pid, "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(string(data), "\n")
}

// Cmdline returns the NUL-separated command line as a slice. Empty for
// kernel threads and vanished processes.
func Cmdline(pid int) []string {
	data, err := os.ReadFile(pidPath(pid, "cmdline"))
	if err != nil || len(data) == 0 {
		return nil
	}
	parts := strings.Split(string(data), "\x00")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Environ returns the raw KEY=VALUE entries of /proc/<pid>/environ.
// Readable only for processes the caller may ptrace.
func Environ(pid int) []string {
	data, err := os.ReadFile(pidPath(pid, "environ"))
	if err != nil || len(data) == 0 {
		return nil
	}
	parts := strings.Split(string(data), "\x00")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// PPID returns the parent pid from /proc/<pid>/status, or 0.
func PPID(pid int) int {
	f, err := os.Open(pidPath(pid, "status"))
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "PPid:") {
			fields := strings.Fields(scanner.Text())
			if len(fields) >= 2 {
				ppid, _ := strconv.Atoi(fields[1])
				return ppid
			}
			break
		}
	}
	return 0
}

// Alive reports whether /proc/<pid> still exists.
func Alive(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
