// Package analyze inspects a finalized recording for timing anomalies.
// It is purely diagnostic: it reports suspected frame drops inferred
// from timestamp gaps and never attempts recovery or interpolation.
package analyze

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/motionlab/handrec/internal/hpos"
)

// Defaults for a 100 Hz source.
const (
	DefaultNominalInterval = 10 * time.Millisecond
	DefaultGapFactor       = 1.5
)

// Options controls gap classification.
type Options struct {
	// NominalInterval is the expected spacing between samples.
	NominalInterval time.Duration

	// GapFactor classifies an interval as a suspected drop when it
	// exceeds NominalInterval * GapFactor.
	GapFactor float64
}

func (o *Options) setDefaults() {
	if o.NominalInterval <= 0 {
		o.NominalInterval = DefaultNominalInterval
	}
	if o.GapFactor <= 0 {
		o.GapFactor = DefaultGapFactor
	}
}

// Gap is one suspected frame-drop event.
type Gap struct {
	// Index is the position of the record after the gap.
	Index int

	// FromMicros and ToMicros are the timestamps bracketing the gap.
	FromMicros int64
	ToMicros   int64

	// IntervalMicros is ToMicros - FromMicros.
	IntervalMicros int64
}

// Report summarizes the timing analysis of one recording.
type Report struct {
	File   string
	Frames int

	NominalMicros int64
	GapFactor     float64

	SuspectedDrops   int
	LargestGapMicros int64
	Gaps             []Gap

	// Interval distribution in microseconds.
	P50Micros int64
	P90Micros int64
	P99Micros int64
	MaxMicros int64

	DurationMicros int64
	ExpectedFrames int64
	EstimatedLoss  int64

	// Truncated reports an incomplete trailing chunk in the file,
	// the signature of an abrupt kill.
	Truncated bool
}

// Analyze streams the recording at path and classifies every
// consecutive-timestamp interval against the nominal rate.
func Analyze(path string, opts Options) (*Report, error) {
	opts.setDefaults()

	r, err := hpos.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	nominal := int64(opts.NominalInterval / time.Microsecond)
	threshold := int64(float64(nominal) * opts.GapFactor)

	rep := &Report{
		File:          path,
		NominalMicros: nominal,
		GapFactor:     opts.GapFactor,
	}

	var (
		first     int64
		prev      int64
		intervals []int64
	)

	for {
		chunk, cerr := r.NextChunk()
		if cerr != nil {
			if errors.Is(cerr, io.EOF) {
				break
			}
			// Truncated tail: everything before it is intact.
			rep.Truncated = true
			break
		}

		for _, rec := range chunk {
			if rep.Frames == 0 {
				first = rec.Timestamp
			} else {
				d := rec.Timestamp - prev
				intervals = append(intervals, d)
				if d > threshold {
					rep.SuspectedDrops++
					rep.Gaps = append(rep.Gaps, Gap{
						Index:          rep.Frames,
						FromMicros:     prev,
						ToMicros:       rec.Timestamp,
						IntervalMicros: d,
					})
					if d > rep.LargestGapMicros {
						rep.LargestGapMicros = d
					}
				}
			}
			prev = rec.Timestamp
			rep.Frames++
		}
	}

	if rep.Frames > 0 {
		rep.DurationMicros = prev - first
		rep.ExpectedFrames = rep.DurationMicros/nominal + 1
		rep.EstimatedLoss = rep.ExpectedFrames - int64(rep.Frames)
		if rep.EstimatedLoss < 0 {
			rep.EstimatedLoss = 0
		}
	}

	if len(intervals) > 0 {
		sorted := make([]int64, len(intervals))
		copy(sorted, intervals)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		rep.P50Micros = percentile(sorted, 0.50)
		rep.P90Micros = percentile(sorted, 0.90)
		rep.P99Micros = percentile(sorted, 0.99)
		rep.MaxMicros = sorted[len(sorted)-1]
	}

	return rep, nil
}

// percentile is nearest-rank over an ascending-sorted slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// String renders the operator-facing diagnostic report.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "recording:       %s\n", r.File)
	fmt.Fprintf(&b, "frames stored:   %d\n", r.Frames)
	fmt.Fprintf(&b, "duration:        %s\n", time.Duration(r.DurationMicros)*time.Microsecond)
	fmt.Fprintf(&b, "nominal interval: %dus (gap threshold %.1fx)\n", r.NominalMicros, r.GapFactor)
	if r.Truncated {
		fmt.Fprintf(&b, "note:            truncated tail chunk excluded (abrupt termination)\n")
	}

	fmt.Fprintf(&b, "suspected drops: %d\n", r.SuspectedDrops)
	if r.SuspectedDrops > 0 {
		fmt.Fprintf(&b, "largest gap:     %dus\n", r.LargestGapMicros)
	}
	if r.Frames > 1 {
		fmt.Fprintf(&b, "intervals:       p50=%dus p90=%dus p99=%dus max=%dus\n",
			r.P50Micros, r.P90Micros, r.P99Micros, r.MaxMicros)
		fmt.Fprintf(&b, "expected frames: %d (estimated loss %d)\n", r.ExpectedFrames, r.EstimatedLoss)
	}

	return b.String()
}
