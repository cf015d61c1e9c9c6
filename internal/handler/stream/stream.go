// Package stream implements the stream handler (spec.md 4.F): formatted
// line writes to a shared byte sink (typically stdout/stderr), flushed
// after every line (line-buffered semantic).
package stream

import (
	"bufio"
	"io"
	"time"

	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// Handler writes one formatted record per line to an io.Writer, flushing
// after each line. The underlying writer is owned exclusively by the
// worker goroutine; nothing else touches it once constructed.
type Handler struct {
	rt        *worker.Runtime[record.Record]
	formatter record.Formatter
	bw        *bufio.Writer
	closer    io.Closer // optional; nil for e.g. os.Stdout which callers manage
}

// Option configures a Handler at construction time.
type Option func(*config)

type config struct {
	capacity     int
	flushTimeout time.Duration
	formatter    record.Formatter
	closer       io.Closer
	warner       *warner.Warner
}

func WithCapacity(n int) Option { return func(c *config) { c.capacity = n } }

func WithFlushTimeout(d time.Duration) Option { return func(c *config) { c.flushTimeout = d } }

func WithFormatter(f record.Formatter) Option { return func(c *config) { c.formatter = f } }

// WithCloser arranges for Close to also close w (use when the handler
// owns the underlying file/socket, as opposed to a shared os.Stdout).
func WithCloser(c io.Closer) Option { return func(cfg *config) { cfg.closer = c } }

func WithWarner(w *warner.Warner) Option { return func(c *config) { c.warner = w } }

// New wraps w into a line-buffered stream handler and starts its worker.
func New(w io.Writer, opts ...Option) *Handler {
	cfg := config{
		capacity:     worker.DefaultCapacity,
		flushTimeout: worker.DefaultFlushTimeout,
		formatter:    record.Default,
	}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Handler{
		formatter: cfg.formatter,
		bw:        bufio.NewWriter(w),
		closer:    cfg.closer,
	}
	h.rt = worker.New[record.Record](cfg.capacity, h, cfg.warner, cfg.flushTimeout)
	return h
}

func (h *Handler) Enqueue(r record.Record, policy worker.Overflow) error {
	return h.rt.Enqueue(r, policy)
}

func (h *Handler) Flush() bool { return h.rt.Flush() }

func (h *Handler) Close() { h.rt.Close() }

// HandleRecord implements worker.Consumer.
func (h *Handler) HandleRecord(r record.Record) error {
	line := h.formatter.Format(r)
	if _, err := h.bw.WriteString(line); err != nil {
		return err
	}
	if err := h.bw.WriteByte('\n'); err != nil {
		return err
	}
	return h.bw.Flush()
}

// HandleFlush implements worker.Consumer.
func (h *Handler) HandleFlush() error { return h.bw.Flush() }

// HandleShutdown implements worker.Consumer: final flush before exit.
func (h *Handler) HandleShutdown() error {
	err := h.bw.Flush()
	if h.closer != nil {
		if cerr := h.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
