// Package encode transforms raw pose events from the device boundary
// into fixed-shape frame records.
//
// Encode runs on the driver's callback goroutine, so it is pure and
// allocation-light: fixed-size output, no I/O, no locks.
package encode

import (
	"fmt"
	"math"

	"github.com/motionlab/handrec/internal/domain"
	"github.com/motionlab/handrec/internal/source"
)

// quatNormTolerance bounds how far a valid palm orientation may deviate
// from unit length. Generous because driver output is float32.
const quatNormTolerance = 0.05

// Encode converts one raw event plus the current task-marker state into
// a FrameRecord. A shape violation (wrong finger/bone counts, more than
// two hands, duplicate sides, negative timestamp, degenerate
// orientation) returns an error wrapping domain.ErrMalformedEvent; the
// caller logs and skips the event.
func Encode(ev source.RawPoseEvent, taskMarker bool) (domain.FrameRecord, error) {
	if ev.TimestampMicros < 0 {
		return domain.FrameRecord{}, fmt.Errorf("%w: negative timestamp %d", domain.ErrMalformedEvent, ev.TimestampMicros)
	}
	if len(ev.Hands) > 2 {
		return domain.FrameRecord{}, fmt.Errorf("%w: %d hands in one event", domain.ErrMalformedEvent, len(ev.Hands))
	}

	rec := domain.FrameRecord{
		Timestamp:  ev.TimestampMicros,
		TaskMarker: taskMarker,
	}

	for i := range ev.Hands {
		raw := &ev.Hands[i]
		pose, err := encodeHand(raw)
		if err != nil {
			return domain.FrameRecord{}, err
		}
		slot := &rec.Right
		if raw.IsLeft {
			slot = &rec.Left
		}
		if slot.Valid {
			return domain.FrameRecord{}, fmt.Errorf("%w: duplicate %s hand", domain.ErrMalformedEvent, side(raw.IsLeft))
		}
		slot.Valid = true
		slot.Pose = pose
	}

	return rec, nil
}

func encodeHand(raw *source.RawHandPose) (domain.HandPose, error) {
	if len(raw.Fingers) != domain.NumFingers {
		return domain.HandPose{}, fmt.Errorf("%w: %s hand has %d fingers", domain.ErrMalformedEvent, side(raw.IsLeft), len(raw.Fingers))
	}

	var pose domain.HandPose
	pose.PalmPosition = raw.PalmPosition
	pose.PalmOrientation = raw.PalmOrientation
	pose.PalmWidth = raw.PalmWidth
	pose.WristPosition = raw.WristPosition
	pose.ElbowPosition = raw.ElbowPosition

	if n := quatNorm(raw.PalmOrientation); math.Abs(n-1) > quatNormTolerance {
		return domain.HandPose{}, fmt.Errorf("%w: %s palm orientation norm %.4f", domain.ErrMalformedEvent, side(raw.IsLeft), n)
	}

	for f, bones := range raw.Fingers {
		if len(bones) != domain.NumBones {
			return domain.HandPose{}, fmt.Errorf("%w: %s finger %d has %d bones", domain.ErrMalformedEvent, side(raw.IsLeft), f, len(bones))
		}
		for b, bone := range bones {
			pose.Fingers[f][b][0] = bone.Prev
			pose.Fingers[f][b][1] = bone.Next
		}
	}

	return pose, nil
}

func quatNorm(q [4]float32) float64 {
	var sum float64
	for _, c := range q {
		sum += float64(c) * float64(c)
	}
	return math.Sqrt(sum)
}

func side(isLeft bool) domain.HandSide {
	if isLeft {
		return domain.Left
	}
	return domain.Right
}
