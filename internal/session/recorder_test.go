package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/motionlab/handrec/internal/domain"
	"github.com/motionlab/handrec/internal/hpos"
	"github.com/motionlab/handrec/internal/source"
	"github.com/motionlab/handrec/internal/writer"
)

// fakeSource hands the delivery callbacks to the test so events can be
// injected deterministically.
type fakeSource struct {
	mu       sync.Mutex
	h        source.Handler
	started  bool
	stopped  bool
	startErr error
}

func (s *fakeSource) Start(_ context.Context, h source.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.h = h
	s.started = true
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSource) emit(ev source.RawPoseEvent) {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	h.PoseEvent(ev)
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	h.FatalError(err)
}

func (s *fakeSource) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func event(ts int64) source.RawPoseEvent {
	return source.RawPoseEvent{TimestampMicros: ts}
}

func newTestRecorder(t *testing.T, src source.Source) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.hpos")
	rec, err := New(Config{OutputPath: path}, src)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return rec, path
}

func TestRecordAndReadBack(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 25; i++ {
		src.emit(event(int64(i * 10000)))
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if !src.wasStopped() {
		t.Error("source not stopped on shutdown")
	}
	if rec.State() != writer.StateClosed {
		t.Errorf("State() = %v, want Closed", rec.State())
	}

	r, err := hpos.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 25 {
		t.Fatalf("read back %d records, want 25", len(recs))
	}
	for i, fr := range recs {
		if fr.Timestamp != int64(i*10000) {
			t.Fatalf("record %d timestamp = %d, want %d", i, fr.Timestamp, i*10000)
		}
	}

	sum := rec.Summary()
	if sum.EventsReceived != 25 || sum.FramesStored != 25 || sum.QueueDrops != 0 {
		t.Errorf("Summary = %+v, want 25 received, 25 stored, 0 drops", sum)
	}
}

func TestSummarySidecarWritten(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))
	src.emit(event(10000))
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	sum, err := LoadSummary(SummaryPath(path))
	if err != nil {
		t.Fatalf("LoadSummary() error = %v", err)
	}
	if sum.SessionID != rec.ID() {
		t.Errorf("sidecar session id = %q, want %q", sum.SessionID, rec.ID())
	}
	if sum.FramesStored != 2 {
		t.Errorf("sidecar frames_stored = %d, want 2", sum.FramesStored)
	}
	if sum.Error != "" {
		t.Errorf("sidecar error = %q, want empty", sum.Error)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))

	if err := rec.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	first := rec.Summary()

	if err := rec.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	second := rec.Summary()

	if first != second {
		t.Errorf("second Stop changed the summary: %+v vs %+v", first, second)
	}

	r, err := hpos.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	recs, err := r.ReadAll()
	if err != nil || len(recs) != 1 {
		t.Errorf("file after double Stop = (%d, %v), want (1, nil)", len(recs), err)
	}
}

func TestStopBeforeStart(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakeSource{})
	if err := rec.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStartTwice(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakeSource{})
	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	rec.Stop()
}

func TestMalformedEventsSkipped(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))
	src.emit(event(-5)) // negative timestamp, dropped by the encoder
	src.emit(event(10000))
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	sum := rec.Summary()
	if sum.EventsReceived != 3 {
		t.Errorf("EventsReceived = %d, want 3", sum.EventsReceived)
	}
	if sum.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", sum.DecodeErrors)
	}
	if sum.FramesStored != 2 {
		t.Errorf("FramesStored = %d, want 2", sum.FramesStored)
	}

	r, err := hpos.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	recs, _ := r.ReadAll()
	if len(recs) != 2 {
		t.Errorf("stored %d records, want 2 (malformed event excluded)", len(recs))
	}
}

func TestTaskMarkerCaptured(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))
	src.h.TaskMarkerChanged(true)
	src.emit(event(10000))
	src.emit(event(20000))
	src.h.TaskMarkerChanged(false)
	src.emit(event(30000))
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	r, err := hpos.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	recs, _ := r.ReadAll()
	if len(recs) != 4 {
		t.Fatalf("stored %d records, want 4", len(recs))
	}

	want := []bool{false, true, true, false}
	for i, fr := range recs {
		if fr.TaskMarker != want[i] {
			t.Errorf("record %d marker = %t, want %t", i, fr.TaskMarker, want[i])
		}
	}
}

func TestOverflowAccounting(t *testing.T) {
	src := &fakeSource{}
	path := filepath.Join(t.TempDir(), "session.hpos")
	rec, err := New(Config{
		OutputPath:    path,
		QueueCapacity: 4,
	}, src)
	if err != nil {
		t.Fatal(err)
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	// A burst far larger than the queue. Whether any given push lands or
	// drops depends on consumer scheduling; what must always hold is that
	// every event is either stored or counted as a drop.
	for i := 0; i < 500; i++ {
		src.emit(event(int64(i * 10000)))
	}
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	sum := rec.Summary()
	if sum.EventsReceived != 500 {
		t.Errorf("EventsReceived = %d, want 500", sum.EventsReceived)
	}
	if sum.FramesStored+sum.QueueDrops != 500 {
		t.Errorf("stored %d + dropped %d != 500, records unaccounted for",
			sum.FramesStored, sum.QueueDrops)
	}
}

func TestSourceFatalErrorStopsSession(t *testing.T) {
	src := &fakeSource{}
	rec, _ := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))
	src.fail(errors.New("device unplugged"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec.State() == writer.StateClosed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec.State() != writer.StateClosed {
		t.Fatalf("State() = %v after fatal source error, want Closed", rec.State())
	}
	if !src.wasStopped() {
		t.Error("source not stopped after fatal error")
	}
}

func TestZeroEventSession(t *testing.T) {
	src := &fakeSource{}
	rec, path := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	r, err := hpos.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v (empty session must leave a valid file)", err)
	}
	defer r.Close()
	recs, err := r.ReadAll()
	if err != nil || len(recs) != 0 {
		t.Errorf("empty session file = (%d, %v), want (0, nil)", len(recs), err)
	}

	if _, err := LoadSummary(SummaryPath(path)); err != nil {
		t.Errorf("sidecar missing for empty session: %v", err)
	}
}

func TestWriterFailureStopsSession(t *testing.T) {
	src := &fakeSource{}
	rec, _ := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A backwards clock step kills the consumer; the session must end on
	// its own rather than wait for the operator.
	src.emit(event(10000))
	src.emit(event(500))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if src.wasStopped() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !src.wasStopped() {
		t.Fatal("source still running after the writer died")
	}

	if err := rec.Stop(); !errors.Is(err, domain.ErrNonMonotonic) {
		t.Errorf("Stop() error = %v, want ErrNonMonotonic", err)
	}
	if rec.State() != writer.StateFailed {
		t.Errorf("State() = %v, want Failed", rec.State())
	}

	// The queue is closed: late deliveries are counted as received but
	// never accepted for storage.
	stored := rec.Summary().FramesStored
	for i := 0; i < 100; i++ {
		src.emit(event(int64(20000 + i*10000)))
	}
	if got := rec.Summary().FramesStored; got != stored {
		t.Errorf("FramesStored grew from %d to %d after writer death", stored, got)
	}

	if sum := rec.Summary(); sum.Error == "" {
		t.Error("summary error is empty after a fatal writer failure")
	}
}

func TestSummaryLiveSnapshot(t *testing.T) {
	src := &fakeSource{}
	path := filepath.Join(t.TempDir(), "session.hpos")
	rec, err := New(Config{
		OutputPath:    path,
		ChunkSize:     5,
		FlushInterval: time.Millisecond,
	}, src)
	if err != nil {
		t.Fatal(err)
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Poll Summary concurrently with live flushing; the race detector
	// verifies the snapshot path is safe against AppendChunk.
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
				_ = rec.Summary()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		src.emit(event(int64(i * 10000)))
	}
	close(stop)
	<-polled

	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Summary().FramesStored; got != 200 {
		t.Errorf("FramesStored = %d, want 200", got)
	}
}

// blockSink wedges the consumer inside a flush until released.
type blockSink struct {
	release chan struct{}
}

func (s *blockSink) AppendChunk([]domain.FrameRecord) error {
	<-s.release
	return nil
}

func (s *blockSink) Rows() uint64   { return 0 }
func (s *blockSink) Chunks() uint64 { return 0 }
func (s *blockSink) Close() error   { return nil }

func TestStopTimesOutOnWedgedWriter(t *testing.T) {
	src := &fakeSource{}
	sink := &blockSink{release: make(chan struct{})}
	t.Cleanup(func() { close(sink.release) })

	path := filepath.Join(t.TempDir(), "session.hpos")
	rec, err := New(Config{
		OutputPath:      path,
		ShutdownTimeout: 100 * time.Millisecond,
	}, src, func(o *options) {
		o.newSink = func(string) (writer.ChunkSink, error) { return sink, nil }
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.emit(event(0))

	if err := rec.Stop(); !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Fatalf("Stop() error = %v, want ErrShutdownTimeout", err)
	}
	if sum := rec.Summary(); sum.Error == "" {
		t.Error("summary error is empty after a drain timeout")
	}
}

func TestStartSourceFailureCleansUp(t *testing.T) {
	src := &fakeSource{startErr: errors.New("no device")}
	rec, _ := newTestRecorder(t, src)

	if err := rec.Start(context.Background()); err == nil {
		t.Fatal("Start() = nil, want source error")
	}
	// The session never began, so Stop must report that.
	if err := rec.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() after failed Start = %v, want ErrNotRunning", err)
	}
}
