package session

import (
	"github.com/motionlab/handrec/internal/hpos"
	"github.com/motionlab/handrec/internal/writer"
	"github.com/motionlab/handrec/pkg/log"
)

// Option configures optional behavior of a Recorder.
type Option func(*options)

type options struct {
	logger      log.Logger
	summaryPath string
	newSink     func(path string) (writer.ChunkSink, error)
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		newSink: func(path string) (writer.ChunkSink, error) {
			return hpos.Create(path)
		},
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSummaryPath overrides where the summary sidecar is written.
// Defaults to "<recording>.summary.json".
func WithSummaryPath(path string) Option {
	return func(o *options) {
		o.summaryPath = path
	}
}
