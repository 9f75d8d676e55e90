package event

import "sync"

// Queue is an unbounded, ordered FIFO carrying events from a tracing
// backend to a single consumer. Send never blocks, which matters because
// the ptrace engine must never stall on a slow consumer while tracees
// are suspended. Recv blocks until an event arrives or the queue is
// closed and drained.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends an event. Sending to a closed queue is a no-op; the
// producer side treats a vanished consumer as non-fatal.
func (q *Queue) Send(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
}

// Recv removes and returns the oldest event. The second return value is
// false once the queue is closed and empty.
func (q *Queue) Recv() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// TryRecv is a non-blocking Recv. The second return value is false when
// no event is immediately available.
func (q *Queue) TryRecv() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// Close marks the queue closed. Pending events remain receivable;
// subsequent Sends are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued, unconsumed events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
