//go:build linux

package sysmon

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/majorcontext/exectrace/internal/event"
	"github.com/majorcontext/exectrace/internal/log"
	"github.com/majorcontext/exectrace/internal/proc"
)

// Netlink connector constants for process events
const (
	// Connector multicast group for process events
	_CN_IDX_PROC = 0x1
	_CN_VAL_PROC = 0x1

	// Process event types from linux/cn_proc.h
	_PROC_EVENT_FORK = 0x00000001
	_PROC_EVENT_EXEC = 0x00000002
	_PROC_EVENT_EXIT = 0x80000000

	// Connector subscription operations
	_PROC_CN_MCAST_LISTEN = 1
	_PROC_CN_MCAST_IGNORE = 2

	// NETLINK_CONNECTOR protocol number
	_NETLINK_CONNECTOR = 11
)

// cleanupInterval is how often stale pids are purged from the tracked
// set, covering EXIT notifications lost to socket buffer overflow.
const cleanupInterval = 60 * time.Second

// procConnector is the Linux monitor. One goroutine owns the netlink
// socket; the tracked-pid set is shared with Stop and guarded.
type procConnector struct {
	cfg   Config
	queue *event.Queue
	sock  int
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	pidMu       sync.RWMutex
	trackedPIDs map[int]bool
	lastCleanup time.Time

	droppedDecodes int64
}

func newMonitor(cfg Config, queue *event.Queue) (Monitor, error) {
	return &procConnector{
		cfg:         cfg,
		queue:       queue,
		done:        make(chan struct{}),
		trackedPIDs: make(map[int]bool),
	}, nil
}

func (m *procConnector) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("monitor already started")
	}

	sock, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM, _NETLINK_CONNECTOR)
	if err != nil {
		return fmt.Errorf("create netlink socket: %w (requires CAP_NET_ADMIN or root)", err)
	}
	m.sock = sock

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: _CN_IDX_PROC,
		Pid:    uint32(syscall.Getpid()),
	}
	if err := syscall.Bind(sock, addr); err != nil {
		syscall.Close(sock)
		return fmt.Errorf("bind netlink socket: %w", err)
	}

	if err := m.subscribe(true); err != nil {
		syscall.Close(sock)
		return fmt.Errorf("subscribe to process events: %w", err)
	}

	if m.cfg.RootPID > 0 {
		m.trackedPIDs[m.cfg.RootPID] = true
	}

	m.started = true
	m.wg.Add(1)
	go m.readLoop()

	return nil
}

func (m *procConnector) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return nil
	}

	m.stopped = true
	close(m.done)
	_ = m.subscribe(false)
	syscall.Close(m.sock)

	m.wg.Wait()
	m.queue.Close()
	m.started = false

	if m.droppedDecodes > 0 {
		log.Debug("monitor stopped", "dropped_decodes", m.droppedDecodes)
	}

	return nil
}

// subscribe sends a message to subscribe/unsubscribe from process events.
func (m *procConnector) subscribe(listen bool) error {
	op := uint32(_PROC_CN_MCAST_IGNORE)
	if listen {
		op = uint32(_PROC_CN_MCAST_LISTEN)
	}

	// Build message: nlmsghdr + cn_msg + op
	// Total size: 16 (nlhdr) + 20 (cnhdr) + 4 (op) = 40 bytes
	buf := make([]byte, 40)

	// Netlink header
	binary.LittleEndian.PutUint32(buf[0:], 40)                        // len
	binary.LittleEndian.PutUint16(buf[4:], syscall.NLMSG_DONE)        // type
	binary.LittleEndian.PutUint16(buf[6:], 0)                         // flags
	binary.LittleEndian.PutUint32(buf[8:], 1)                         // seq
	binary.LittleEndian.PutUint32(buf[12:], uint32(syscall.Getpid())) // pid

	// Connector header
	binary.LittleEndian.PutUint32(buf[16:], _CN_IDX_PROC) // id.idx
	binary.LittleEndian.PutUint32(buf[20:], _CN_VAL_PROC) // id.val
	binary.LittleEndian.PutUint32(buf[24:], 1)            // seq
	binary.LittleEndian.PutUint32(buf[28:], 0)            // ack
	binary.LittleEndian.PutUint16(buf[32:], 4)            // len (op size)
	binary.LittleEndian.PutUint16(buf[34:], 0)            // flags

	// Operation
	binary.LittleEndian.PutUint32(buf[36:], op)

	// Send to kernel (pid=0)
	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: _CN_IDX_PROC,
		Pid:    0,
	}
	return syscall.Sendto(m.sock, buf, 0, addr)
}

func (m *procConnector) readLoop() {
	defer m.wg.Done()

	buf := make([]byte, 4096)
	consecutiveErrors := 0
	const maxConsecutiveErrors = 10

	for {
		select {
		case <-m.done:
			return
		default:
		}

		if time.Since(m.lastCleanup) > cleanupInterval {
			m.cleanupStalePIDs()
		}

		// Read timeout so the done channel is checked periodically.
		tv := syscall.Timeval{Sec: 1, Usec: 0}
		if err := syscall.SetsockoptTimeval(m.sock, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			log.Debug("failed to set socket timeout", "error", err)
		}

		n, _, err := syscall.Recvfrom(m.sock, buf, 0)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				consecutiveErrors = 0
				continue
			}
			select {
			case <-m.done:
				return
			default:
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveErrors {
					log.Error("too many consecutive errors in monitor read loop, stopping",
						"error", err, "count", consecutiveErrors)
					return
				}
				log.Debug("error reading from netlink socket", "error", err)
				continue
			}
		}
		consecutiveErrors = 0

		if n >= 52 { // Minimum size: nlhdr(16) + cnhdr(20) + proc_event(16)
			m.parseMessage(buf[:n])
		}
	}
}

func (m *procConnector) parseMessage(buf []byte) {
	// Skip netlink header (16) and connector header (20)
	offset := 36

	if len(buf) < offset+16 {
		return
	}

	what := binary.LittleEndian.Uint32(buf[offset:])
	offset += 16 // Skip: what(4) + cpu(4) + timestamp(8)

	switch what {
	case _PROC_EVENT_EXEC:
		if len(buf) < offset+8 {
			return
		}
		pid := int(binary.LittleEndian.Uint32(buf[offset:]))
		if m.shouldTrack(pid) {
			m.emitExec(pid)
		}

	case _PROC_EVENT_FORK:
		if len(buf) < offset+16 {
			return
		}
		parentPID := int(binary.LittleEndian.Uint32(buf[offset:]))
		childPID := int(binary.LittleEndian.Uint32(buf[offset+8:]))

		m.pidMu.RLock()
		tracked := m.trackedPIDs[parentPID]
		m.pidMu.RUnlock()
		if tracked {
			m.pidMu.Lock()
			m.trackedPIDs[childPID] = true
			m.pidMu.Unlock()
		}

	case _PROC_EVENT_EXIT:
		if len(buf) < offset+8 {
			return
		}
		pid := int(binary.LittleEndian.Uint32(buf[offset:]))
		exitCode := binary.LittleEndian.Uint32(buf[offset+4:])

		m.pidMu.Lock()
		tracked := m.trackedPIDs[pid]
		delete(m.trackedPIDs, pid)
		m.pidMu.Unlock()

		if tracked || m.cfg.RootPID == 0 {
			m.queue.Send(exitEvent(pid, exitCode))
		}
	}
}

// exitEvent translates a raw wait status from the exit notification.
func exitEvent(pid int, code uint32) event.Exit {
	ws := syscall.WaitStatus(code)
	ev := event.Exit{PID: pid}
	switch {
	case ws.Exited():
		ev.Status = ws.ExitStatus()
	case ws.Signaled():
		ev.Status = 128 + int(ws.Signal())
		ev.Signal = ws.Signal().String()
	default:
		ev.Status = int(code)
	}
	return ev
}

func (m *procConnector) shouldTrack(pid int) bool {
	if m.cfg.RootPID == 0 {
		return true
	}
	m.pidMu.RLock()
	tracked := m.trackedPIDs[pid]
	m.pidMu.RUnlock()
	if tracked {
		return true
	}
	// A fork notification can be lost to socket buffer overflow;
	// recover scope membership from the /proc parent chain.
	if m.hasTrackedAncestor(pid) {
		m.pidMu.Lock()
		m.trackedPIDs[pid] = true
		m.pidMu.Unlock()
		return true
	}
	return false
}

// hasTrackedAncestor walks parent links looking for the root or any
// tracked pid. The walk is bounded; a reparented orphan ends at init.
func (m *procConnector) hasTrackedAncestor(pid int) bool {
	for depth := 0; depth < 32; depth++ {
		ppid := proc.PPID(pid)
		if ppid <= 1 {
			return false
		}
		if ppid == m.cfg.RootPID {
			return true
		}
		m.pidMu.RLock()
		tracked := m.trackedPIDs[ppid]
		m.pidMu.RUnlock()
		if tracked {
			return true
		}
		pid = ppid
	}
	return false
}

// cleanupStalePIDs removes tracked pids that no longer exist in /proc.
func (m *procConnector) cleanupStalePIDs() {
	m.pidMu.Lock()
	defer m.pidMu.Unlock()

	for pid := range m.trackedPIDs {
		if !proc.Alive(pid) {
			delete(m.trackedPIDs, pid)
		}
	}
	m.lastCleanup = time.Now()
}

// emitExec reconstructs an exec event from /proc. The process may be
// gone already; a vanished pid is dropped silently.
func (m *procConnector) emitExec(pid int) {
	argv := proc.Cmdline(pid)
	if len(argv) == 0 || argv[0] == "" {
		m.droppedDecodes++
		return
	}

	comm := proc.Comm(pid)
	if comm == "" {
		comm = filepath.Base(argv[0])
	}
	if !commAllowed(m.cfg, comm) {
		return
	}

	m.queue.Send(event.Exec{
		Timestamp: time.Now(),
		PID:       pid,
		Comm:      comm,
		Data: event.ExecData{
			// cmdline is the post-exec view; the filename as passed to
			// the syscall is not recoverable from /proc.
			Filename: argv[0],
			Argv:     argv,
			Envp:     proc.Environ(pid),
		},
		Result: 0,
	})
}
