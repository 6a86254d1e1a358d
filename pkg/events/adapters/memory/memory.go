// Package memory provides an in-process events.Bus backed by a
// per-topic slice of handlers, invoked synchronously on Publish.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/events"
	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// Bus is a synchronous, in-process events.Bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]events.Handler
	closed   bool
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]events.Handler)}
}

func (b *Bus) Subscribe(ctx context.Context, topic string, handler events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.CodeInternal, "event bus is closed", nil)
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Publish invokes every handler subscribed to topic synchronously on
// the caller's goroutine. A handler error is logged and does not stop
// delivery to the remaining handlers — this bus has no retry/DLQ
// semantics of its own, unlike the broker's own Queue engine.
func (b *Bus) Publish(ctx context.Context, topic string, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := append([]events.Handler(nil), b.handlers[topic]...)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return errors.New(errors.CodeInternal, "event bus is closed", nil)
	}

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			logger.L().ErrorContext(ctx, "event handler failed", "topic", topic, "event_type", event.Type, "error", err)
		}
	}
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}
