package logger

import (
	"context"
	"log/slog"
	"math/rand"
)

// SamplingHandler drops a fraction of records before they reach the
// rest of the chain. Errors and warnings always pass through regardless
// of the sampling rate — only INFO/DEBUG volume is thinned.
type SamplingHandler struct {
	next slog.Handler
	rate float64
}

func NewSamplingHandler(h slog.Handler, rate float64) *SamplingHandler {
	return &SamplingHandler{next: h, rate: rate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn || rand.Float64() < h.rate {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{next: h.next.WithAttrs(attrs), rate: h.rate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{next: h.next.WithGroup(name), rate: h.rate}
}
