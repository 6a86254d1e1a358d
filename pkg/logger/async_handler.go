package logger

import (
	"context"
	"log/slog"
)

// AsyncHandler buffers records on a channel and hands them to the next
// handler from a single background goroutine, so callers on the hot
// path never block on the sink (stdout, a file, a remote collector).
type AsyncHandler struct {
	next    slog.Handler
	records chan slog.Record
	drop    bool
}

// NewAsyncHandler starts the background writer goroutine. If drop is
// true, records are discarded when the buffer is full instead of
// blocking the caller.
func NewAsyncHandler(next slog.Handler, bufSize int, drop bool) *AsyncHandler {
	h := &AsyncHandler{
		next:    next,
		records: make(chan slog.Record, bufSize),
		drop:    drop,
	}
	go h.loop()
	return h
}

func (h *AsyncHandler) loop() {
	for r := range h.records {
		_ = h.next.Handle(context.Background(), r)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	clone := r.Clone()
	if h.drop {
		select {
		case h.records <- clone:
		default:
		}
		return nil
	}
	h.records <- clone
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), records: h.records, drop: h.drop}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), records: h.records, drop: h.drop}
}
