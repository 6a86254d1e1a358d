package messaging

import "github.com/emanuel-epifani/nexo/pkg/errors"

// Error codes for messaging operations.
const (
	CodeConnectionFailed = "MESSAGING_CONN_FAILED"
	CodePublishFailed    = "MESSAGING_PUBLISH_FAILED"
	CodeClosed           = "MESSAGING_CLOSED"
	CodeQueueFull        = "MESSAGING_QUEUE_FULL"
)

// ErrConnectionFailed creates an error for broker connection failures.
func ErrConnectionFailed(err error) *errors.AppError {
	return errors.New(CodeConnectionFailed, "failed to connect to message broker", err)
}

// ErrPublishFailed creates an error for publish failures.
func ErrPublishFailed(err error) *errors.AppError {
	return errors.New(CodePublishFailed, "failed to publish message", err)
}

// ErrClosed creates an error for closed connections.
func ErrClosed(err error) *errors.AppError {
	return errors.New(CodeClosed, "broker connection is closed", err)
}

// ErrQueueFull creates an error for full producer queues (memory driver).
func ErrQueueFull(err error) *errors.AppError {
	return errors.New(CodeQueueFull, "producer queue is full", err)
}
