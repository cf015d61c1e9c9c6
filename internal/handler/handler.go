// Package handler defines the common Handler contract every sink kind
// (stream, file, socket, HTTP) implements over the shared worker.Runtime
// scaffold. A Handler's identity is its pointer value: two loggers that
// attach the same Handler instance share one worker goroutine, per
// spec.md's "Handler identity: reference equality" rule.
package handler

import (
	"femtolog/internal/record"
	"femtolog/internal/worker"
)

// Handler is implemented by every concrete sink (stream/file/socket/http).
// States are Open -> Closed, one-way: Close has no resurrection.
type Handler interface {
	// Enqueue hands a record to the handler's worker under the given
	// overflow policy. Errors are the ferrors.ErrQueueFull/ErrTimeout/
	// ErrClosed sentinels; callers never block beyond the policy chosen.
	Enqueue(r record.Record, policy worker.Overflow) error
	// Flush blocks until all records enqueued-before this call are
	// durable in the sink, or the handler's configured flush timeout
	// elapses. Returns false after Close.
	Flush() bool
	// Close shuts the handler down: idempotent, drains pending records,
	// performs a final flush, and releases sink resources.
	Close()
}
