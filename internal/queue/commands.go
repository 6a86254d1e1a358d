package queue

import (
	"context"
	"time"

	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// ExistsCmd implements EXISTS(name).
type ExistsCmd struct {
	Name  string
	Reply chan bool
}

// PushCmd implements PUSH(queue, payload, priority, delay_ms).
type PushCmd struct {
	Name     string
	Payload  []byte
	Priority uint8
	Delay    time.Duration
	Reply    chan PushResult
}

type PushResult struct {
	ID  string
	Err error
}

func (e *Engine) handlePush(c *PushCmd) PushResult {
	q, ok := e.queues[c.Name]
	if !ok {
		return PushResult{Err: errors.NotFound("queue does not exist", nil)}
	}

	now := e.clock.Now()
	q.seq++
	msg := &Message{
		ID:         newMessageID(),
		Payload:    c.Payload,
		Priority:   c.Priority,
		EnqueuedAt: now,
		seq:        q.seq,
	}

	delay := c.Delay
	if delay <= 0 {
		delay = q.policy.DefaultDelay
	}

	if delay > 0 {
		msg.State = StateScheduled
		msg.NextVisibility = now.Add(delay)
		q.scheduled.PushItem(msg.ID, float64(msg.NextVisibility.UnixNano()))
		e.armWake(q, delay)
	} else {
		msg.State = StatePending
		q.pending.PushItem(msg.ID, pendingScore(msg.Priority, msg.seq))
	}
	q.arena[msg.ID] = msg

	e.appendRecord(q, recordPush, msg)
	e.wakeWaiter(q)

	return PushResult{ID: msg.ID}
}

// pendingScore orders the pending heap by priority (higher first) then
// FIFO. Priority dominates by a wide margin so the FIFO sequence never
// overflows into the next priority band; both terms stay well inside
// float64's exact-integer range (2^53).
func pendingScore(priority uint8, seq int64) float64 {
	return -(float64(priority) * 1e13) + float64(seq)
}

// ConsumeCmd implements CONSUME(queue, batch_size, wait_ms).
type ConsumeCmd struct {
	Name      string
	BatchSize int
	Wait      time.Duration
	Reply     chan ConsumeResult
}

type ConsumeResult struct {
	Messages []DeliveredMessage
	Err      error
}

func (e *Engine) handleConsume(ctx context.Context, c *ConsumeCmd) {
	q, ok := e.queues[c.Name]
	if !ok {
		c.Reply <- ConsumeResult{Err: errors.NotFound("queue does not exist", nil)}
		return
	}

	batch := c.BatchSize
	if batch <= 0 {
		batch = 1
	}

	delivered := e.drainPending(q, batch)
	if len(delivered) > 0 || c.Wait <= 0 {
		c.Reply <- ConsumeResult{Messages: delivered}
		return
	}

	q.waitID++
	w := &waiter{id: q.waitID, batchSize: batch, reply: c.Reply}
	q.waiters.Enqueue(w)

	waitID := q.waitID
	name := q.name
	go func() {
		select {
		case <-e.clock.After(c.Wait):
			select {
			case e.mailbox <- &waiterTimeoutCmd{Name: name, WaiterID: waitID}:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) drainPending(q *queueState, batch int) []DeliveredMessage {
	var out []DeliveredMessage
	now := e.clock.Now()
	for len(out) < batch {
		id, _, ok := q.pending.PopItem()
		if !ok {
			break
		}
		msg, ok := q.arena[id]
		if !ok {
			continue
		}
		msg.State = StateInFlight
		msg.Attempts++
		msg.NextVisibility = now.Add(q.policy.VisibilityTimeout)
		q.inflight.PushItem(msg.ID, float64(msg.NextVisibility.UnixNano()))
		out = append(out, DeliveredMessage{
			Handle:   msg.ID,
			Payload:  msg.Payload,
			Attempts: msg.Attempts,
			Priority: msg.Priority,
		})
	}
	if len(out) > 0 {
		e.armWake(q, q.policy.VisibilityTimeout)
	}
	return out
}

func (e *Engine) wakeWaiter(q *queueState) {
	for {
		w, ok := q.waiters.Dequeue()
		if !ok {
			return
		}
		if w.done {
			continue
		}
		delivered := e.drainPending(q, w.batchSize)
		if len(delivered) == 0 {
			// nothing to give it yet, put it back at the front and stop
			q.waiters.items = append([]*waiter{w}, q.waiters.items...)
			return
		}
		w.done = true
		w.reply <- ConsumeResult{Messages: delivered}
	}
}

type waiterTimeoutCmd struct {
	Name     string
	WaiterID int64
}

func (e *Engine) expireWaiter(name string, waiterID int64) {
	q, ok := e.queues[name]
	if !ok {
		return
	}
	remaining := newWaiterQueue()
	for {
		w, ok := q.waiters.Dequeue()
		if !ok {
			break
		}
		if w.id == waiterID && !w.done {
			w.done = true
			w.reply <- ConsumeResult{}
			continue
		}
		remaining.Enqueue(w)
	}
	q.waiters = remaining
}

// AckCmd implements ACK(queue, handle). Idempotent: acking an unknown
// or already-acked handle is not an error.
type AckCmd struct {
	Name   string
	Handle string
	Reply  chan error
}

func (e *Engine) handleAck(c *AckCmd) error {
	q, ok := e.queues[c.Name]
	if !ok {
		return errors.NotFound("queue does not exist", nil)
	}
	msg, ok := q.arena[c.Handle]
	if !ok || msg.State != StateInFlight {
		return nil
	}
	delete(q.arena, c.Handle)
	// the stale inflight heap entry for this handle is discarded by
	// sweep when its lease deadline comes due, since the arena lookup
	// will miss by then.
	e.appendRecord(q, recordAck, msg)
	return nil
}

// NackCmd implements NACK(queue, handle, reason).
type NackCmd struct {
	Name   string
	Handle string
	Reason string
	Reply  chan error
}

func (e *Engine) handleNack(ctx context.Context, c *NackCmd) error {
	q, ok := e.queues[c.Name]
	if !ok {
		return errors.NotFound("queue does not exist", nil)
	}
	msg, ok := q.arena[c.Handle]
	if !ok || msg.State != StateInFlight {
		return nil
	}
	msg.FailureReason = c.Reason
	e.retryOrDead(ctx, q, msg)
	return nil
}

// retryOrDead reschedules a failed message with a fixed backoff, or
// promotes it to the queue's dead-letter queue once MaxRetries is
// exhausted. Fixed backoff, not exponential: spec leaves the curve to
// the implementer and a fixed visibility-timeout-scaled delay is
// enough to avoid a hot retry loop without adding a second policy
// knob.
func (e *Engine) retryOrDead(ctx context.Context, q *queueState, msg *Message) {
	if q.policy.MaxRetries > 0 && msg.Attempts >= q.policy.MaxRetries {
		e.promoteToDLQ(ctx, q, msg)
		return
	}

	now := e.clock.Now()
	backoff := q.policy.VisibilityTimeout
	if backoff <= 0 {
		backoff = time.Second
	}
	msg.State = StateScheduled
	msg.NextVisibility = now.Add(backoff)
	q.scheduled.PushItem(msg.ID, float64(msg.NextVisibility.UnixNano()))
	e.armWake(q, backoff)
	e.appendRecord(q, recordNack, msg)
}

func (e *Engine) promoteToDLQ(ctx context.Context, q *queueState, msg *Message) {
	dlq, ok := e.queues[q.dlqName]
	if !ok {
		var err error
		dlq, err = e.newQueueState(ctx, q.dlqName, Policy{
			Persistence: q.policy.Persistence,
		}, true)
		if err != nil {
			return
		}
		e.queues[q.dlqName] = dlq
	}

	delete(q.arena, msg.ID)
	msg.State = StatePending
	dlq.seq++
	msg.seq = dlq.seq
	dlq.arena[msg.ID] = msg
	dlq.pending.PushItem(msg.ID, pendingScore(msg.Priority, msg.seq))
	e.appendRecord(dlq, recordPush, msg)
	e.wakeWaiter(dlq)
	e.forwardToDLQSink(ctx, q, msg)
}

// sweep is triggered by a queue's wake timer firing. It promotes due
// scheduled messages to pending and requeues timed-out in-flight
// leases as retries.
type sweepCmd struct {
	Name string
}

func (e *Engine) sweep(ctx context.Context, name string) {
	q, ok := e.queues[name]
	if !ok {
		return
	}
	now := e.clock.Now()

	for {
		id, score, ok := q.scheduled.Peek()
		if !ok || score > float64(now.UnixNano()) {
			break
		}
		q.scheduled.PopItem()
		msg, ok := q.arena[id]
		if !ok || msg.State != StateScheduled {
			continue // stale entry: message was deleted or re-scheduled since
		}
		msg.State = StatePending
		q.pending.PushItem(msg.ID, pendingScore(msg.Priority, msg.seq))
	}

	for {
		id, score, ok := q.inflight.Peek()
		if !ok || score > float64(now.UnixNano()) {
			break
		}
		q.inflight.PopItem()
		msg, ok := q.arena[id]
		if !ok || msg.State != StateInFlight {
			continue // stale entry: message was acked or already retried
		}
		msg.FailureReason = "visibility timeout"
		e.retryOrDead(ctx, q, msg)
	}

	e.wakeWaiter(q)
}

// appendRecord writes a durable record of a state transition. Replay
// only needs to reconstruct Push/Ack/Nack in order; Scheduled/InFlight
// promotions are pure functions of wall-clock time and are redone by
// the first sweep after restart.
func (e *Engine) appendRecord(q *queueState, kind byte, msg *Message) {
	enc := wire.NewEncoder()
	enc.PutU8(kind)
	enc.PutString(msg.ID)
	enc.PutBytes(msg.Payload)
	enc.PutU8(msg.Priority)
	enc.PutU64(uint64(msg.Attempts))
	enc.PutU64(uint64(msg.EnqueuedAt.UnixNano()))
	if err := q.log.Append(enc.Bytes()); err != nil {
		// persistence failures never block the in-memory operation; the
		// engine keeps serving from the arena and the supervisor will
		// restart from the last durable point if the process dies.
		_ = err
	}
}

const (
	recordPush byte = 1
	recordAck  byte = 2
	recordNack byte = 3
)
