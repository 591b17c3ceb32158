package source

import (
	"context"
	"math"
	"sync"
	"time"
)

// SyntheticConfig controls the generated stream.
type SyntheticConfig struct {
	// Rate is events per second. Defaults to 100.
	Rate float64

	// MaxEvents stops the stream after this many events. 0 = unbounded.
	MaxEvents int

	// StartMicros is the timestamp of the first event.
	StartMicros int64
}

// Synthetic generates a deterministic pose stream at a fixed rate from
// its own goroutine, standing in for the device driver. Timestamps
// advance by the exact nominal interval regardless of scheduling, so
// recordings made from it analyze as drop-free.
type Synthetic struct {
	cfg SyntheticConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Rate <= 0 {
		cfg.Rate = 100
	}
	return &Synthetic{cfg: cfg}
}

// Start begins generating events. The handler is invoked from a single
// dedicated goroutine, mirroring the driver's delivery contract.
func (s *Synthetic) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(ctx, h)
	return nil
}

// Stop halts generation and waits for the delivery goroutine to exit,
// guaranteeing no callback fires after Stop returns.
func (s *Synthetic) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Synthetic) run(ctx context.Context, h Handler) {
	defer close(s.done)

	interval := time.Duration(float64(time.Second) / s.cfg.Rate)
	stepMicros := int64(interval / time.Microsecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ts := s.cfg.StartMicros
	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if h.PoseEvent != nil {
			h.PoseEvent(synthEvent(ts, count))
		}
		ts += stepMicros
		count++
		if s.cfg.MaxEvents > 0 && count >= s.cfg.MaxEvents {
			return
		}
	}
}

// synthEvent builds a two-handed pose with smoothly varying geometry so
// dumps of synthetic recordings are visually plausible.
func synthEvent(ts int64, n int) RawPoseEvent {
	phase := float64(n) * 0.05
	return RawPoseEvent{
		TimestampMicros: ts,
		Hands: []RawHandPose{
			synthHand(true, phase),
			synthHand(false, phase),
		},
	}
}

func synthHand(left bool, phase float64) RawHandPose {
	x := float32(120 * math.Sin(phase))
	if left {
		x = -x
	}
	y := float32(200 + 30*math.Cos(phase))

	fingers := make([][]RawBone, 5)
	for f := range fingers {
		bones := make([]RawBone, 4)
		for b := range bones {
			base := [3]float32{x, y, float32(10 * (f + 1))}
			bones[b] = RawBone{
				Prev: [3]float32{base[0], base[1] + float32(b*10), base[2]},
				Next: [3]float32{base[0], base[1] + float32(b*10+10), base[2]},
			}
		}
		fingers[f] = bones
	}

	return RawHandPose{
		IsLeft:          left,
		PalmPosition:    [3]float32{x, y, 0},
		PalmOrientation: [4]float32{0, 0, 0, 1},
		PalmWidth:       85,
		WristPosition:   [3]float32{x, y - 60, 0},
		ElbowPosition:   [3]float32{x, y - 300, 20},
		Fingers:         fingers,
	}
}
