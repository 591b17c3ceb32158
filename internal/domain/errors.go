package domain

import "errors"

// Domain errors for the recording pipeline.
// These are returned by the public API and can be checked with errors.Is.
var (
	// ErrMalformedEvent is returned by the encoder when a raw event from
	// the device driver does not have the expected shape. The producer
	// logs and skips the event; the session continues.
	ErrMalformedEvent = errors.New("handrec: malformed pose event")

	// ErrWriteFailed is returned when a flush to the recording file
	// fails. Fatal to the session; previously flushed chunks stay valid.
	ErrWriteFailed = errors.New("handrec: write failed")

	// ErrNonMonotonic is returned when a record's timestamp goes
	// backwards relative to the last stored record. Data-integrity
	// error; never silently corrected.
	ErrNonMonotonic = errors.New("handrec: non-monotonic timestamp")

	// ErrShutdownTimeout is returned when draining the queue exceeded
	// the shutdown bound.
	ErrShutdownTimeout = errors.New("handrec: shutdown timeout")

	// ErrAlreadyRunning is returned when Start() is called on a running
	// recorder.
	ErrAlreadyRunning = errors.New("handrec: already running")

	// ErrNotRunning is returned when Stop() is called before Start().
	ErrNotRunning = errors.New("handrec: not running")

	// ErrBadFormat is returned when a file does not carry the expected
	// magic or format version.
	ErrBadFormat = errors.New("handrec: bad file format")

	// ErrTruncatedChunk is returned when the tail of a recording file
	// holds an incomplete or corrupt chunk, typically after an abrupt
	// kill. All chunks before it are intact and readable.
	ErrTruncatedChunk = errors.New("handrec: truncated chunk")
)
