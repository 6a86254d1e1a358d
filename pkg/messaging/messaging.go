// Package messaging defines the publish-side abstraction the broker
// uses to mirror its own state onto an external system: Queue dead
// letters forwarded to Kafka, and whatever other one-way sink a future
// bridge needs. There is deliberately no Consumer side here — nothing
// in this broker subscribes to an external message bus, only ever
// publishes to one, so the interface does not carry the ack/consumer-
// group machinery a general-purpose messaging library would.
//
// # Architecture
//
//   - Core interfaces are defined here (zero external dependencies)
//   - Each adapter lives in its own sub-package (pkg/messaging/adapters/{driver})
//   - Callers import only the adapter they need, pulling only that SDK
//
// # Usage
//
//	import (
//	    "github.com/emanuel-epifani/nexo/pkg/messaging"
//	    "github.com/emanuel-epifani/nexo/pkg/messaging/adapters/kafka"
//	)
//
//	broker, err := kafka.New(kafka.Config{Brokers: []string{"localhost:9092"}})
//	producer, err := broker.Producer("jobs_dlq")
//	defer producer.Close()
//
//	err = producer.Publish(ctx, &messaging.Message{
//	    Topic:   "jobs_dlq",
//	    Payload: deadLetterPayload,
//	})
package messaging

import (
	"context"
	"time"
)

// Message is the unit published to an external sink. Fields beyond
// Topic/Payload/Headers are best-effort: an adapter that has no notion
// of a partitioning Key simply ignores it.
type Message struct {
	// ID uniquely identifies the message. Adapters generate one if unset.
	ID string `json:"id"`

	// Topic is the destination the producer was not already bound to,
	// or an override when it was.
	Topic string `json:"topic"`

	// Key partitions the message in systems that support it (Kafka).
	Key []byte `json:"key,omitempty"`

	Payload []byte `json:"payload"`

	Headers map[string]string `json:"headers,omitempty"`

	// Timestamp defaults to the publish time if left zero.
	Timestamp time.Time `json:"timestamp"`

	// Metadata is filled in by the adapter after a successful publish
	// (partition/offset for Kafka) and should be treated as read-only.
	Metadata MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries broker-specific placement info back to the
// caller after a publish.
type MessageMetadata struct {
	Partition int32 `json:"partition,omitempty"`
	Offset    int64 `json:"offset,omitempty"`
}

// Producer publishes messages to one topic.
type Producer interface {
	Publish(ctx context.Context, msg *Message) error

	// Close releases resources associated with the producer.
	Close() error
}

// Broker dials an external system and hands out producers bound to it.
type Broker interface {
	// Producer creates a new producer for the specified topic. The
	// producer can be reused for multiple messages.
	Producer(topic string) (Producer, error)

	// Close shuts down the broker connection and all associated producers.
	Close() error

	// Healthy reports whether the broker connection is usable.
	Healthy(ctx context.Context) bool
}
