package messaging

import (
	"context"

	"github.com/emanuel-epifani/nexo/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedBroker wraps a Broker with logging and tracing around
// every producer it hands out, so a DLQ forward failure shows up as a
// span with the queue's topic attached rather than a bare log line.
type InstrumentedBroker struct {
	next   Broker
	tracer trace.Tracer
}

// NewInstrumentedBroker wraps next with OpenTelemetry tracing.
func NewInstrumentedBroker(next Broker) *InstrumentedBroker {
	return &InstrumentedBroker{
		next:   next,
		tracer: otel.Tracer("pkg/messaging"),
	}
}

func (b *InstrumentedBroker) Producer(topic string) (Producer, error) {
	producer, err := b.next.Producer(topic)
	if err != nil {
		logger.L().Error("failed to create producer", "topic", topic, "error", err)
		return nil, err
	}
	return &InstrumentedProducer{
		next:   producer,
		topic:  topic,
		tracer: b.tracer,
	}, nil
}

func (b *InstrumentedBroker) Close() error {
	logger.L().Info("closing messaging broker")
	return b.next.Close()
}

func (b *InstrumentedBroker) Healthy(ctx context.Context) bool {
	return b.next.Healthy(ctx)
}

// InstrumentedProducer wraps a Producer with logging and tracing.
type InstrumentedProducer struct {
	next   Producer
	topic  string
	tracer trace.Tracer
}

func (p *InstrumentedProducer) Publish(ctx context.Context, msg *Message) error {
	ctx, span := p.tracer.Start(ctx, "messaging.Publish", trace.WithAttributes(
		attribute.String("messaging.topic", p.topic),
		attribute.String("messaging.message_id", msg.ID),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "publishing message", "topic", p.topic, "message_id", msg.ID)

	err := p.next.Publish(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to publish message", "topic", p.topic, "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	return nil
}

func (p *InstrumentedProducer) Close() error {
	logger.L().Info("closing producer", "topic", p.topic)
	return p.next.Close()
}
