package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncCore is shared by every handler derived through WithAttrs/WithGroup.
type asyncCore struct {
	ch      chan asyncEntry
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

type asyncEntry struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler buffers records in a bounded channel drained by a fixed set of
// workers. Records are dropped, and counted, when the buffer is full.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler creates an AsyncHandler with the given buffer size and worker count.
func NewAsyncHandler(inner slog.Handler, buffer, workers int) *AsyncHandler {
	core := &asyncCore{ch: make(chan asyncEntry, buffer)}
	for range workers {
		core.wg.Add(1)
		go func() {
			defer core.wg.Done()
			for e := range core.ch {
				_ = e.h.Handle(context.Background(), e.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, core: core}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.ch <- asyncEntry{h: h.inner, rec: rec.Clone()}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount returns the number of records dropped because the buffer was full.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and waits for the workers to flush. Safe to call twice.
func (h *AsyncHandler) Close() {
	h.core.once.Do(func() {
		close(h.core.ch)
		h.core.wg.Wait()
	})
}
