// Package diag is femtolog's own bootstrap logger: the library's internal
// diagnostics (dropped records, rotation failures, panics recovered from a
// worker goroutine) have to go somewhere that isn't the handler pipeline
// being diagnosed, so they go here. Grounded on the teacher's
// internal/logger slog wrapper, generalized from an ETL-specific API to a
// plain structured logger any femtolog package can import.
package diag

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// handlerKind selects which slog.Handler constructor backs the built-in
// (non-custom) logger, so SetLevel can rebuild it from scratch: slog.Handler
// has no WithOptions/SetLevel method to mutate in place.
type handlerKind int

const (
	kindJSON handlerKind = iota
	kindText
)

var (
	mu     sync.RWMutex
	log    = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	writer io.Writer   = os.Stderr
	kind   handlerKind = kindJSON
	level  slog.Level  = slog.LevelInfo
)

// SetLogger swaps the process-wide diagnostics logger. SetLevel calls after
// this one rebuild from the last writer/kind tracked here, not from l's own
// handler, since slog.Handler exposes no way to recover its construction.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// SetTextLogger switches to a human-readable text handler at the given level.
func SetTextLogger(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	writer, kind, level = os.Stderr, kindText, lvl
	log = newHandlerLogger(kind, writer, level)
}

// SetLevel rebuilds the logger at the given level, preserving whichever
// handler kind and writer SetTextLogger (or the JSON default) last set.
func SetLevel(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	log = newHandlerLogger(kind, writer, level)
}

func newHandlerLogger(k handlerKind, w io.Writer, lvl slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if k == kindText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Info(msg string, args ...any)  { current().Info(msg, args...) }
func Warn(msg string, args ...any)  { current().Warn(msg, args...) }
func Error(msg string, args ...any) { current().Error(msg, args...) }
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any)  { current().InfoContext(ctx, msg, args...) }
func WarnContext(ctx context.Context, msg string, args ...any)  { current().WarnContext(ctx, msg, args...) }
func ErrorContext(ctx context.Context, msg string, args ...any) { current().ErrorContext(ctx, msg, args...) }
