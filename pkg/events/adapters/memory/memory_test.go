package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emanuel-epifani/nexo/pkg/events"
	"github.com/emanuel-epifani/nexo/pkg/events/adapters/memory"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	received := make(chan events.Event, 1)
	require.NoError(t, bus.Subscribe(context.Background(), "connection.closed", func(ctx context.Context, e events.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "connection.closed", events.Event{
		Type:    "connection.closed",
		Source:  "nexo.server",
		Payload: 42,
	}))

	got := <-received
	require.Equal(t, "connection.closed", got.Type)
	require.Equal(t, 42, got.Payload)
	require.False(t, got.Timestamp.IsZero())
}

func TestPublishAfterCloseFails(t *testing.T) {
	bus := memory.New()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), "connection.closed", events.Event{Type: "connection.closed"})
	require.Error(t, err)
}
