package stream

import (
	"context"
	"time"

	"github.com/emanuel-epifani/nexo/pkg/logger"
	"github.com/emanuel-epifani/nexo/pkg/resilience"
	"github.com/emanuel-epifani/nexo/pkg/streaming"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSink mirrors every published record onto an external streaming
// service (Kinesis, GCP Pub/Sub, Event Hubs), so a topic can feed an
// analytics pipeline without that pipeline becoming a consumer group
// competing with the broker's own ones.
func WithSink(client streaming.Client) Option {
	return func(e *Engine) { e.sink = client }
}

var sinkRetry = resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
	Multiplier:     2.0,
	RetryIf:        func(err error) bool { return err != nil },
}

// mirrorToSink fires off the external PutRecord on its own goroutine so
// a slow or retrying sink never holds up the partition's append path;
// the partition log, not the sink, is the durability source of truth.
func (e *Engine) mirrorToSink(topic string, partition int, rec Record) {
	if e.sink == nil {
		return
	}
	partitionKey := partitionDirName(partition)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := resilience.Retry(ctx, sinkRetry, func(ctx context.Context) error {
			return e.sink.PutRecord(ctx, topic, partitionKey, rec.Payload)
		})
		if err != nil {
			logger.L().Warn("stream sink mirror failed", "topic", topic, "partition", partition, "error", err)
		}
	}()
}
