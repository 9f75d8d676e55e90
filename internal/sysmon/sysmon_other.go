//go:build !linux

package sysmon

import (
	"errors"

	"github.com/majorcontext/exectrace/internal/event"
)

func newMonitor(cfg Config, queue *event.Queue) (Monitor, error) {
	return nil, errors.New("whole-system monitoring requires Linux (proc connector)")
}
