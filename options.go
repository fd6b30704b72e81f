package tiled

import (
	"github.com/qri-io/tiled-go/logger"
)

// Option configures an Extract or ExtractInto call.
type Option func(*options)

type options struct {
	strategy Strategy
	lenient  bool
	logger   logger.Logger
	onSkip   func(region int, err error)
	stats    *Stats
}

func defaultOptions() *options {
	return &options{
		logger: logger.NewNoopLogger(),
	}
}

// WithStrategy sets the execution strategy. The default is the zero
// Strategy, which picks one automatically.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithLenient makes operation failures per-region instead of fatal. A
// failed region keeps its previous output value and the call returns a
// *RegionErrors listing the failures. Read failures stay fatal.
func WithLenient() Option {
	return func(o *options) {
		o.lenient = true
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSkipHandler registers fn to be called for each region lying wholly
// outside the array, with an error wrapping ErrOutOfBounds. Skipped
// regions are never passed to the operation and their output slots are
// left untouched.
func WithSkipHandler(fn func(region int, err error)) Option {
	return func(o *options) {
		o.onSkip = fn
	}
}

// WithStats fills s with a summary of the call once it returns.
func WithStats(s *Stats) Option {
	return func(o *options) {
		o.stats = s
	}
}

// Stats summarizes one call.
type Stats struct {
	Strategy  string
	Tiles     int
	Contained int
	Shared    int
	Skipped   int
	// PeakPending is the most shared regions awaiting partials at once.
	PeakPending int
}
