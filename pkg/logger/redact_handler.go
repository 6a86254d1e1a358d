package logger

import (
	"context"
	"log/slog"
)

// redactedKeys are attribute keys whose values are replaced before any
// record reaches the sink. Matching is case-sensitive on the attribute
// key as written by the caller.
var redactedKeys = map[string]bool{
	"password": true,
	"secret":   true,
	"token":    true,
	"api_key":  true,
	"payload":  true,
	"email":    true,
	"cc":       true,
	"value":    true, // Store SET values logged by handlers under debug tracing
}

const redactedValue = "[REDACTED]"

// RedactHandler scrubs attribute values for known-sensitive keys so
// message/queue payloads and credentials never land in log output.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	clone := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clone.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clone)
}

func redactAttr(a slog.Attr) slog.Attr {
	if redactedKeys[a.Key] {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
