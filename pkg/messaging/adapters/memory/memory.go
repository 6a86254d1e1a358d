// Package memory provides an in-process messaging.Broker that records
// every published message instead of forwarding it anywhere. It backs
// the broker's own test suites; cmd/nexod does not use it, and with no
// Kafka brokers configured dead letters are not forwarded at all.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/messaging"
	"github.com/google/uuid"
)

// Config configures the in-memory broker.
type Config struct {
	// MaxPerTopic caps how many messages a topic retains before Publish
	// starts reporting back pressure, mirroring a real broker's bounded
	// queue depth instead of growing a topic without limit.
	MaxPerTopic int `env:"MESSAGING_MEMORY_MAX_PER_TOPIC" env-default:"256"`
}

// Broker is a messaging.Broker that keeps every published message for
// the lifetime of the process, grouped by topic.
type Broker struct {
	cfg Config

	mu     sync.Mutex
	topics map[string][]*messaging.Message
	closed bool
}

func New(cfg Config) *Broker {
	if cfg.MaxPerTopic <= 0 {
		cfg.MaxPerTopic = 256
	}
	return &Broker{cfg: cfg, topics: make(map[string][]*messaging.Message)}
}

func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	if b.isClosed() {
		return nil, messaging.ErrClosed(nil)
	}
	return &producer{broker: b, topic: topic}, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Broker) Healthy(ctx context.Context) bool {
	return !b.isClosed()
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Broker) record(topic string, msg *messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return messaging.ErrClosed(nil)
	}
	if len(b.topics[topic]) >= b.cfg.MaxPerTopic {
		return messaging.ErrQueueFull(errors.New(errors.CodeBackPressure, "topic at capacity", nil))
	}
	b.topics[topic] = append(b.topics[topic], msg)
	return nil
}

// Messages returns every message published to topic so far, in publish
// order. It is a test/debug introspection point, not part of
// messaging.Broker.
func (b *Broker) Messages(topic string) []*messaging.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*messaging.Message, len(b.topics[topic]))
	copy(out, b.topics[topic])
	return out
}

type producer struct {
	broker *Broker
	topic  string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	topic := p.topic
	if msg.Topic != "" {
		topic = msg.Topic
	}
	return p.broker.record(topic, msg)
}

func (p *producer) Close() error { return nil }
