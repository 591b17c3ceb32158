// Package source defines the event-source boundary: the narrow
// interface through which an external device driver delivers parsed
// pose events, plus a synthetic source for tests and hardware-free
// recording.
//
// Connection management and raw wire decoding live on the far side of
// this boundary and are not part of handrec.
package source

import "context"

// RawBone is one bone of a digit, described by its two joint endpoints.
type RawBone struct {
	Prev [3]float32
	Next [3]float32
}

// RawHandPose is one hand as delivered by the driver. Finger and bone
// counts are validated by the encoder, not here.
type RawHandPose struct {
	// IsLeft reports which side the driver attributed the hand to.
	IsLeft bool

	PalmPosition    [3]float32
	PalmOrientation [4]float32
	PalmWidth       float32
	WristPosition   [3]float32
	ElbowPosition   [3]float32

	// Fingers is expected to hold 5 digits of 4 bones each.
	Fingers [][]RawBone
}

// RawPoseEvent is one tracking sample as delivered by the driver.
type RawPoseEvent struct {
	// TimestampMicros is the device's monotonic clock in microseconds.
	TimestampMicros int64

	// Hands holds zero, one, or two tracked hands.
	Hands []RawHandPose
}

// Handler receives events from the source. All callbacks are invoked
// from a single foreign goroutine (the driver's delivery context,
// possibly not the main goroutine) and must not block: no I/O, no
// unbounded allocation, no lock held across a send.
type Handler struct {
	// PoseEvent is invoked once per tracking sample.
	PoseEvent func(RawPoseEvent)

	// TaskMarkerChanged is invoked when the operator toggles the task
	// window flag.
	TaskMarkerChanged func(bool)

	// FatalError is invoked when the source can no longer deliver
	// events. The session should stop after this.
	FatalError func(error)
}

// Source delivers pose events to a registered handler.
type Source interface {
	// Start begins delivery to h. Delivery stops when ctx is canceled
	// or Stop is called.
	Start(ctx context.Context, h Handler) error

	// Stop halts delivery and releases the delivery goroutine.
	// Idempotent; blocks until no further callbacks will fire.
	Stop() error
}
