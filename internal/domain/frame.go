package domain

// Hand geometry dimensions. These are fixed for the lifetime of a
// recording file: absent hands are stored with zeroed geometry rather
// than omitted, so every record has the same shape.
const (
	NumFingers        = 5
	NumBones          = 4
	NumJointEndpoints = 2
	NumCoords         = 3
)

// Vec3 is a position in millimeters, device coordinate frame.
type Vec3 [NumCoords]float32

// Quat is a unit quaternion (x, y, z, w). Norm is ~1 for valid hands.
type Quat [4]float32

// FingerSet holds the joint endpoints of every bone of every digit:
// 5 digits x 4 bones x 2 endpoints x 3 coordinates.
type FingerSet [NumFingers][NumBones][NumJointEndpoints]Vec3

// HandSide identifies which hand a pose belongs to.
// Compared by value, never by string formatting.
type HandSide int

const (
	Left HandSide = iota
	Right
)

// String returns a human-readable representation of the side.
func (s HandSide) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// HandPose is the full skeletal pose of one hand at one sample.
type HandPose struct {
	PalmPosition    Vec3
	PalmOrientation Quat
	PalmWidth       float32
	WristPosition   Vec3
	ElbowPosition   Vec3
	Fingers         FingerSet
}

// Hand is a hand slot in a frame. Pose fields are only meaningful when
// Valid is true; an absent hand carries zeroed geometry.
type Hand struct {
	Valid bool
	Pose  HandPose
}

// FrameRecord is one encoded acquisition sample. Records are immutable
// once encoded and are passed by value through the transfer queue, so
// producer and consumer never share mutable state.
type FrameRecord struct {
	// Timestamp is the monotonic source-clock time in microseconds.
	// Strictly non-decreasing across consecutive stored records.
	Timestamp int64

	// TaskMarker is the operator-controlled flag at the moment of the
	// sample, delimiting experimental task windows.
	TaskMarker bool

	Left  Hand
	Right Hand
}
