// Package writer implements the consumer side of the pipeline: a
// single goroutine that drains the transfer queue, buffers records,
// and appends them to the recording file under a dual flush policy.
package writer

import (
	"fmt"
	"sync"
	"time"

	"github.com/motionlab/handrec/internal/domain"
	"github.com/motionlab/handrec/internal/queue"
	"github.com/motionlab/handrec/pkg/log"
)

// ChunkSink is what the consumer needs from the recording file.
// *hpos.Writer satisfies it.
type ChunkSink interface {
	// AppendChunk durably appends the records as one self-contained
	// chunk. An error is fatal to the session.
	AppendChunk([]domain.FrameRecord) error

	// Rows and Chunks report what has been durably written.
	Rows() uint64
	Chunks() uint64

	// Close finalizes the sink. Safe to call twice.
	Close() error
}

// Flush policy defaults: whichever of the two thresholds fires first
// triggers a flush. The size bound caps memory, the time bound caps the
// worst-case data-loss window on abrupt termination.
const (
	DefaultChunkSize     = 1000
	DefaultFlushInterval = 500 * time.Millisecond
)

// Config holds the flush policy.
type Config struct {
	// ChunkSize flushes once this many records are pending.
	ChunkSize int

	// FlushInterval flushes pending records at least this often.
	FlushInterval time.Duration
}

// Writer drains the queue into the recording file. It owns the file
// handle, write cursor, and pending buffer exclusively; the queue is
// the only object shared with the producer.
type Writer struct {
	cfg    Config
	q      *queue.Queue
	out    ChunkSink
	logger log.Logger

	mu    sync.RWMutex
	state State
	err   error

	// Consumer-goroutine private.
	pending       []domain.FrameRecord
	lastFlush     time.Time
	lastTimestamp int64

	done chan struct{}
}

// New creates a writer in StateIdle. Run must be called exactly once,
// on a dedicated goroutine.
func New(q *queue.Queue, out ChunkSink, cfg Config, logger log.Logger) *Writer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Writer{
		cfg:           cfg,
		q:             q,
		out:           out,
		logger:        logger,
		state:         StateIdle,
		pending:       make([]domain.FrameRecord, 0, cfg.ChunkSize),
		lastTimestamp: -1,
		done:          make(chan struct{}),
	}
}

// Run is the consumer loop. It blocks until the queue is closed and
// drained (normal shutdown) or a flush fails (StateFailed). Done() is
// closed when Run returns.
func (w *Writer) Run() {
	defer close(w.done)

	w.transition(StateRunning, "consumer started")
	w.lastFlush = time.Now()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-w.q.Out():
			if !ok {
				// Queue closed and fully drained: final flush, finalize.
				w.transition(StateDraining, "queue closed")
				if err := w.flush("final"); err != nil {
					w.fail(err)
					return
				}
				if err := w.out.Close(); err != nil {
					w.fail(err)
					return
				}
				w.transition(StateClosed, "file finalized")
				return
			}

			if err := w.accept(rec); err != nil {
				w.fail(err)
				return
			}
			if len(w.pending) >= w.cfg.ChunkSize {
				if err := w.flush("chunk size"); err != nil {
					w.fail(err)
					return
				}
			}

		case <-ticker.C:
			if len(w.pending) > 0 && time.Since(w.lastFlush) >= w.cfg.FlushInterval {
				if err := w.flush("interval"); err != nil {
					w.fail(err)
					return
				}
			}
		}
	}
}

// accept appends rec to the pending buffer, enforcing timestamp
// monotonicity across the whole session.
func (w *Writer) accept(rec domain.FrameRecord) error {
	if rec.Timestamp < w.lastTimestamp {
		return fmt.Errorf("%w: timestamp %d after %d", domain.ErrNonMonotonic, rec.Timestamp, w.lastTimestamp)
	}
	w.lastTimestamp = rec.Timestamp
	w.pending = append(w.pending, rec)
	return nil
}

// flush appends the pending buffer as one chunk and resets the timer.
// Each flush is an independent, self-contained append: a failure here
// never corrupts previously flushed chunks.
func (w *Writer) flush(reason string) error {
	if len(w.pending) == 0 {
		w.lastFlush = time.Now()
		return nil
	}

	n := len(w.pending)
	if err := w.out.AppendChunk(w.pending); err != nil {
		return err
	}

	w.logger.Debug("flushed chunk",
		log.Int("records", n),
		log.String("trigger", reason),
		log.Uint64("total_rows", w.out.Rows()),
	)

	w.pending = w.pending[:0]
	w.lastFlush = time.Now()
	return nil
}

// fail records the fatal error and abandons the session without
// touching already-flushed chunks.
func (w *Writer) fail(err error) {
	w.logger.Error("writer failed", log.Err(err))
	_ = w.out.Close()

	w.mu.Lock()
	w.err = err
	w.mu.Unlock()

	w.transition(StateFailed, err.Error())
}

func (w *Writer) transition(to State, reason string) {
	w.mu.Lock()
	from := w.state
	if !validTransition(from, to) {
		w.mu.Unlock()
		w.logger.Warn("invalid state transition",
			log.String("from", from.String()),
			log.String("to", to.String()),
		)
		return
	}
	w.state = to
	w.mu.Unlock()

	w.logger.Info("writer state",
		log.String("from", from.String()),
		log.String("to", to.String()),
		log.String("reason", reason),
	)
}

// State returns the current lifecycle state.
func (w *Writer) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Err returns the fatal error, if the writer is in StateFailed.
func (w *Writer) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Done is closed when the consumer loop has exited.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Rows returns the number of records durably written.
func (w *Writer) Rows() uint64 { return w.out.Rows() }

// Chunks returns the number of chunks durably written.
func (w *Writer) Chunks() uint64 { return w.out.Chunks() }
