// Package domain contains the core value types and errors for handrec.
//
// This is the innermost layer: it has no dependencies on I/O, logging,
// or concurrency primitives and contains only the data model.
//
// # Entities
//
//   - [FrameRecord]: one timestamped hand-pose sample
//   - [HandPose]: the skeletal pose of a single hand
//   - [HandSide]: left/right enumeration, compared by value
//
// Records are immutable after encoding and move through the pipeline by
// value. A record that is enqueued but never dequeued before an abrupt
// process kill is lost by design; the session summary carries the exact
// overflow-drop count.
package domain
