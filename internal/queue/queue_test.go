package queue

import (
	"testing"
	"time"

	"github.com/motionlab/handrec/internal/domain"
)

func rec(ts int64) domain.FrameRecord {
	return domain.FrameRecord{Timestamp: ts}
}

func TestFIFOPreservation(t *testing.T) {
	q := New(100)

	for i := 0; i < 50; i++ {
		if !q.TryPush(rec(int64(i))) {
			t.Fatalf("TryPush(%d) rejected with capacity to spare", i)
		}
	}

	for i := 0; i < 50; i++ {
		r, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() closed early at %d", i)
		}
		if r.Timestamp != int64(i) {
			t.Errorf("Pop() = timestamp %d, want %d", r.Timestamp, i)
		}
	}

	if q.Drops() != 0 {
		t.Errorf("Drops() = %d, want 0", q.Drops())
	}
	if q.Pushed() != 50 {
		t.Errorf("Pushed() = %d, want 50", q.Pushed())
	}
}

func TestOverflowDropsNewest(t *testing.T) {
	q := New(4)

	accepted := 0
	for i := 0; i < 10; i++ {
		if q.TryPush(rec(int64(i))) {
			accepted++
		}
	}

	if accepted != 4 {
		t.Errorf("accepted = %d, want 4", accepted)
	}
	if q.Drops() != 6 {
		t.Errorf("Drops() = %d, want 6", q.Drops())
	}

	// The records that made it in are the oldest four, in order.
	for i := 0; i < 4; i++ {
		r, ok := q.Pop()
		if !ok || r.Timestamp != int64(i) {
			t.Errorf("Pop() = (%d, %t), want (%d, true)", r.Timestamp, ok, i)
		}
	}
}

func TestPushNeverBlocks(t *testing.T) {
	q := New(8)

	// No consumer at all: every push beyond capacity must return
	// promptly rather than wait for space.
	start := time.Now()
	for i := 0; i < 10000; i++ {
		q.TryPush(rec(int64(i)))
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("10000 pushes against a stalled consumer took %v", elapsed)
	}

	if q.Drops() != 10000-8 {
		t.Errorf("Drops() = %d, want %d", q.Drops(), 10000-8)
	}
}

func TestCloseSemantics(t *testing.T) {
	q := New(10)

	for i := 0; i < 3; i++ {
		q.TryPush(rec(int64(i)))
	}
	q.Close()
	q.Close() // idempotent

	// Rejected after close, but not counted as an overflow drop.
	if q.TryPush(rec(99)) {
		t.Error("TryPush accepted after Close")
	}
	if q.Drops() != 0 {
		t.Errorf("Drops() = %d after post-close push, want 0", q.Drops())
	}

	// Items enqueued before the close drain out in order.
	for i := 0; i < 3; i++ {
		r, ok := q.Pop()
		if !ok || r.Timestamp != int64(i) {
			t.Fatalf("Pop() = (%d, %t), want (%d, true)", r.Timestamp, ok, i)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop() = ok after drain, want end-of-stream")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const n = 5000
	q := New(n)

	done := make(chan []int64)
	go func() {
		var got []int64
		for {
			r, ok := q.Pop()
			if !ok {
				break
			}
			got = append(got, r.Timestamp)
		}
		done <- got
	}()

	for i := 0; i < n; i++ {
		if !q.TryPush(rec(int64(i))) {
			t.Errorf("TryPush(%d) rejected with capacity >= producer count", i)
		}
	}
	q.Close()

	got := <-done
	if len(got) != n {
		t.Fatalf("consumed %d records, want %d", len(got), n)
	}
	for i, ts := range got {
		if ts != int64(i) {
			t.Fatalf("record %d has timestamp %d, want %d (reordered)", i, ts, i)
		}
	}
}

func TestDefaultCapacity(t *testing.T) {
	q := New(0)
	if q.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", q.Cap(), DefaultCapacity)
	}
}
