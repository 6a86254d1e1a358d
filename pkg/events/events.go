// Package events is the in-process notification bus the server uses
// to tell the rest of the broker a connection went away, without
// giving internal/server a direct import on whatever happens to
// subscribe (today just a debug log line in cmd/nexod; nothing stops
// a future subscriber — a connection-count gauge, say — from joining
// without server.go changing at all).
//
//	import "github.com/emanuel-epifani/nexo/pkg/events/adapters/memory"
//
//	bus := memory.New()
//	bus.Subscribe(ctx, "connection.closed", func(ctx context.Context, e events.Event) error {
//		// Handle event
//	})
//	bus.Publish(ctx, "connection.closed", events.Event{Type: "connection.closed", Payload: info})
package events

import (
	"context"
	"time"
)

// Event is one notification on a topic. Timestamp is stamped by the
// Bus at Publish time if the caller leaves it zero.
type Event struct {
	Type      string      `json:"type"`   // e.g. "connection.closed"
	Source    string      `json:"source"` // e.g. "nexo.server"
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Handler handles an incoming event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
