package queue

import (
	"context"

	"github.com/emanuel-epifani/nexo/pkg/logger"
	"github.com/emanuel-epifani/nexo/pkg/messaging"
)

// Option configures an Engine at construction time. Kept separate
// from New's required parameters since most deployments need neither.
type Option func(*Engine)

// WithDLQForward mirrors every message promoted to a dead-letter queue
// onto an external broker, so an operator can alert on or replay dead
// letters without polling the admin snapshot endpoint.
func WithDLQForward(producer messaging.Producer) Option {
	return func(e *Engine) { e.dlqForward = producer }
}

func (e *Engine) forwardToDLQSink(ctx context.Context, q *queueState, msg *Message) {
	if e.dlqForward == nil {
		return
	}
	out := &messaging.Message{
		ID:      msg.ID,
		Topic:   q.dlqName,
		Payload: msg.Payload,
		Headers: map[string]string{"failure_reason": msg.FailureReason},
	}
	queueName, messageID := q.name, msg.ID
	go func() {
		if err := e.dlqForward.Publish(ctx, out); err != nil {
			logger.L().WarnContext(ctx, "dlq forward failed", "queue", queueName, "message_id", messageID, "error", err)
		}
	}()
}
