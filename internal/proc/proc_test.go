//go:build linux

package proc

import (
	"os"
	"testing"
)

func TestCommSelf(t *testing.T) {
	if Comm(os.Getpid()) == "" {
		t.Error("own comm should be readable")
	}
}

func TestCmdlineSelf(t *testing.T) {
	argv := Cmdline(os.Getpid())
	if len(argv) == 0 {
		t.Fatal("own cmdline should be readable")
	}
	if argv[0] == "" {
		t.Error("argv[0] should be non-empty")
	}
}

func TestPPIDSelf(t *testing.T) {
	if got := PPID(os.Getpid()); got != os.Getppid() {
		t.Errorf("PPID = %d, want %d", got, os.Getppid())
	}
}

func TestVanishedPID(t *testing.T) {
	const pid = 999999999
	if Comm(pid) != "" || Cmdline(pid) != nil || PPID(pid) != 0 {
		t.Error("vanished pid should read as zero values")
	}
	if Alive(pid) {
		t.Error("vanished pid should not be alive")
	}
}
