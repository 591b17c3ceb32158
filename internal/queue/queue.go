// Package queue provides the bounded transfer queue between the device
// callback context and the writer goroutine.
//
// Single producer, single consumer. The push side never blocks: when
// the queue is full the incoming record is dropped and counted, so the
// device driver's callback thread is never stalled by a slow consumer.
// Backpressure is visible through Drops(), never silent.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/motionlab/handrec/internal/domain"
)

// DefaultCapacity tolerates roughly 20 seconds of consumer stall at the
// nominal 100 Hz event rate.
const DefaultCapacity = 2000

// Queue is a capacity-bounded FIFO of frame records.
type Queue struct {
	mu     sync.RWMutex
	ch     chan domain.FrameRecord
	closed bool

	pushed uint64
	drops  uint64
}

// New creates a queue with the given capacity.
// A capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan domain.FrameRecord, capacity)}
}

// TryPush enqueues rec without blocking. Returns false when the record
// was not accepted: either the queue is full (counted as a drop) or the
// queue has been closed (shutdown in progress, not counted — the
// session is already over for the producer).
//
// Safe to call concurrently with Pop and Close. The read lock only
// excludes Close; it is never held across I/O or a blocking send.
func (q *Queue) TryPush(rec domain.FrameRecord) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.ch <- rec:
		atomic.AddUint64(&q.pushed, 1)
		return true
	default:
		atomic.AddUint64(&q.drops, 1)
		return false
	}
}

// Out exposes the receive side for the consumer. The channel is closed
// by Close once no further pushes are accepted; records enqueued before
// the close remain receivable until drained, after which receives
// report the usual end-of-stream (ok == false).
func (q *Queue) Out() <-chan domain.FrameRecord {
	return q.ch
}

// Pop blocks until a record is available or the queue is closed and
// drained. ok is false at end-of-stream.
func (q *Queue) Pop() (rec domain.FrameRecord, ok bool) {
	rec, ok = <-q.ch
	return rec, ok
}

// Close marks the queue closed for pushes. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Pushed returns the number of records accepted so far.
func (q *Queue) Pushed() uint64 {
	return atomic.LoadUint64(&q.pushed)
}

// Drops returns the number of records rejected on overflow.
// Should be ~0 in a healthy session; non-zero means the writer stalled
// longer than the queue capacity tolerates.
func (q *Queue) Drops() uint64 {
	return atomic.LoadUint64(&q.drops)
}

// Cap returns the configured capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Len returns the number of records currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}
