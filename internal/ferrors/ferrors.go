// Package ferrors holds the sentinel error taxonomy surfaced at femtolog's
// boundaries, following the teacher's internal/sink/errors.go pattern of
// wrapping a small set of sentinels with %w rather than pulling in a
// multi-error library.
package ferrors

import "errors"

var (
	// Configuration-time errors (spec.md section 6/7).
	ErrInvalidVersion   = errors.New("invalid config version")
	ErrMissingRoot      = errors.New("missing root logger config")
	ErrBuilderFailed    = errors.New("builder failed")
	ErrUnknownHandlerID = errors.New("unknown handler id")
	ErrUnknownFilterID  = errors.New("unknown filter id")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrInvalidConfig    = errors.New("invalid config")

	// Runtime produce-side errors.
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("closed")
	ErrTimeout   = errors.New("timeout")

	// Sink/worker errors.
	ErrOpenSink   = errors.New("open sink")
	ErrWriteSink  = errors.New("write sink")
	ErrRotateSink = errors.New("rotate sink")
	ErrFrameTooLarge = errors.New("frame too large")
)
