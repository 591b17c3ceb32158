// Package session wires the acquisition pipeline together: event
// source -> encoder -> bounded queue -> writer -> recording file. The
// Recorder owns session lifetime, including the shutdown coordinator.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/handrec/internal/domain"
	"github.com/motionlab/handrec/internal/encode"
	"github.com/motionlab/handrec/internal/queue"
	"github.com/motionlab/handrec/internal/source"
	"github.com/motionlab/handrec/internal/writer"
	"github.com/motionlab/handrec/pkg/log"
)

// DefaultShutdownTimeout bounds the drain on Stop. Draining is bounded
// by queue capacity plus one in-flight flush, so hitting this timeout
// means the writer is wedged, not slow.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the per-session pipeline parameters.
type Config struct {
	// OutputPath is the recording file to create. Required.
	OutputPath string

	// QueueCapacity bounds the transfer queue. Defaults to 2000 slots,
	// about 20 seconds of tolerance at 100 Hz.
	QueueCapacity int

	// ChunkSize and FlushInterval set the writer's dual flush policy.
	ChunkSize     int
	FlushInterval time.Duration

	// ShutdownTimeout bounds Stop's wait for the final drain and flush.
	ShutdownTimeout time.Duration
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = queue.DefaultCapacity
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = writer.DefaultChunkSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = writer.DefaultFlushInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}

// Recorder is one recording session. Create with New, drive with
// Start/Stop. A Recorder is single-use: once stopped it cannot be
// restarted.
type Recorder struct {
	cfg  Config
	opts options
	src  source.Source
	id   string

	q   *queue.Queue
	out writer.ChunkSink
	w   *writer.Writer

	marker     atomic.Bool
	events     atomic.Uint64
	decodeErrs atomic.Uint64

	mu        sync.Mutex
	started   bool
	startedAt time.Time

	stopOnce sync.Once
	stopErr  error
	summary  Summary
}

// New creates a recorder for the given source.
func New(cfg Config, src source.Source, opts ...Option) (*Recorder, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.summaryPath == "" {
		o.summaryPath = SummaryPath(cfg.OutputPath)
	}

	return &Recorder{
		cfg:  cfg,
		opts: o,
		src:  src,
		id:   uuid.NewString(),
	}, nil
}

// ID returns the session identifier.
func (r *Recorder) ID() string { return r.id }

// Start creates the recording file, launches the consumer goroutine,
// and begins event delivery. Returns domain.ErrAlreadyRunning on a
// second call.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return domain.ErrAlreadyRunning
	}

	out, err := r.opts.newSink(r.cfg.OutputPath)
	if err != nil {
		return err
	}

	r.out = out
	r.q = queue.New(r.cfg.QueueCapacity)
	r.w = writer.New(r.q, out, writer.Config{
		ChunkSize:     r.cfg.ChunkSize,
		FlushInterval: r.cfg.FlushInterval,
	}, r.opts.logger)

	go r.w.Run()

	h := source.Handler{
		PoseEvent:         r.onPoseEvent,
		TaskMarkerChanged: r.SetTaskMarker,
		FatalError:        r.onFatalError,
	}
	if err := r.src.Start(ctx, h); err != nil {
		r.q.Close()
		<-r.w.Done()
		return fmt.Errorf("start source: %w", err)
	}

	r.started = true
	r.startedAt = time.Now()

	// A dead consumer (flush failure, clock regression) ends the session;
	// otherwise the source keeps feeding a queue nobody drains until the
	// operator notices at Stop.
	go func() {
		<-r.w.Done()
		if r.w.Err() != nil {
			_ = r.Stop()
		}
	}()

	r.opts.logger.Info("session started",
		log.String("session", r.id),
		log.String("file", r.cfg.OutputPath),
		log.Int("queue_capacity", r.q.Cap()),
	)
	return nil
}

// onPoseEvent runs on the source's delivery goroutine. It must never
// block: encode is pure, TryPush drops on overflow, and failures become
// counters rather than propagated errors.
func (r *Recorder) onPoseEvent(ev source.RawPoseEvent) {
	r.events.Add(1)

	rec, err := encode.Encode(ev, r.marker.Load())
	if err != nil {
		r.decodeErrs.Add(1)
		r.opts.logger.Warn("skipping malformed event", log.Err(err))
		return
	}

	r.q.TryPush(rec)
}

func (r *Recorder) onFatalError(err error) {
	r.opts.logger.Error("event source failed", log.Err(err))
	// Stop blocks until the delivery goroutine exits, and this callback
	// runs on the delivery goroutine, so it must detach.
	go func() { _ = r.Stop() }()
}

// SetTaskMarker sets the task-window flag sampled at encode time.
func (r *Recorder) SetTaskMarker(v bool) {
	r.marker.Store(v)
}

// TaskMarker returns the current task-window flag.
func (r *Recorder) TaskMarker() bool {
	return r.marker.Load()
}

// Stop shuts the session down: stop event delivery, close the queue
// for writes, await drain and final flush, write the summary sidecar.
// Idempotent: a second Stop returns the same result without repeating
// any of it.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return domain.ErrNotRunning
	}

	r.stopOnce.Do(func() {
		_ = r.src.Stop()
		r.q.Close()

		var serr error
		select {
		case <-r.w.Done():
			serr = r.w.Err()
		case <-time.After(r.cfg.ShutdownTimeout):
			serr = domain.ErrShutdownTimeout
		}

		// stopErr is read by concurrent Summary() snapshots, so it is
		// published under the same lock as the frozen summary.
		r.mu.Lock()
		r.stopErr = serr
		r.summary = r.buildSummary()
		r.mu.Unlock()

		if err := WriteSummary(r.opts.summaryPath, r.summary); err != nil {
			r.opts.logger.Warn("failed to write summary sidecar", log.Err(err))
		}

		r.opts.logger.Info("session stopped",
			log.String("session", r.id),
			log.Uint64("frames_stored", r.summary.FramesStored),
			log.Uint64("queue_drops", r.summary.QueueDrops),
			log.Uint64("decode_errors", r.summary.DecodeErrors),
		)
	})

	return r.stopErr
}

// State returns the consumer's lifecycle state, or StateIdle before
// Start.
func (r *Recorder) State() writer.State {
	r.mu.Lock()
	w := r.w
	r.mu.Unlock()
	if w == nil {
		return writer.StateIdle
	}
	return w.State()
}

// Summary returns the session outcome. Before Stop completes it
// reflects a live snapshot of the counters.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary.SessionID != "" {
		return r.summary
	}
	return r.buildSummary()
}

func (r *Recorder) buildSummary() Summary {
	s := Summary{
		SessionID:      r.id,
		File:           r.cfg.OutputPath,
		StartedAt:      r.startedAt,
		EndedAt:        time.Now(),
		EventsReceived: r.events.Load(),
		DecodeErrors:   r.decodeErrs.Load(),
	}
	if r.q != nil {
		s.QueueDrops = r.q.Drops()
	}
	if r.w != nil {
		s.FramesStored = r.w.Rows()
		s.ChunksFlushed = r.w.Chunks()
	}
	if r.stopErr != nil {
		s.Error = r.stopErr.Error()
	}
	return s
}
