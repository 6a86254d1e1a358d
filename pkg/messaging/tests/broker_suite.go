// Package tests holds a reusable conformance suite for messaging.Broker
// implementations, so every adapter (memory, kafka, ...) is checked
// against the same publish contract.
package tests

import (
	"context"
	"testing"

	"github.com/emanuel-epifani/nexo/pkg/messaging"
	"github.com/stretchr/testify/require"
)

// RunBrokerTests exercises the basic publish contract of a
// messaging.Broker implementation.
func RunBrokerTests(t *testing.T, broker messaging.Broker) {
	t.Helper()

	t.Run("publish succeeds", func(t *testing.T) {
		producer, err := broker.Producer("conformance-topic")
		require.NoError(t, err)
		defer producer.Close()

		require.NoError(t, producer.Publish(context.Background(), &messaging.Message{
			Topic:   "conformance-topic",
			Payload: []byte("hello"),
		}))
	})

	t.Run("healthy before close", func(t *testing.T) {
		require.True(t, broker.Healthy(context.Background()))
	})
}
