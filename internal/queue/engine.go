// Package queue implements the durable job queue: per-queue priority
// and scheduled heaps, in-flight visibility timeouts, retry/DLQ, and a
// write-ahead log, all owned by one goroutine per SPEC_FULL.md's
// actor-per-engine model. See spec.md §4.4.
package queue

import (
	"context"
	"path/filepath"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/pkg/concurrency"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/logger"
	"github.com/emanuel-epifani/nexo/pkg/messaging"
	"github.com/google/uuid"
)

const dlqSuffix = "_dlq"

// waiter is a parked long-poll consume request.
type waiter struct {
	id        int64
	batchSize int
	reply     chan ConsumeResult
	done      bool
}

// queueState holds everything one named queue owns.
type queueState struct {
	name   string
	policy Policy

	pending   *idHeap // score: priority+seq, lower pops first
	scheduled *idHeap // score: nextVisibility unixnano
	inflight  *idHeap // score: lease expiry unixnano

	arena   map[string]*Message
	waiters *waiterQueue

	dlqName string
	isDLQ   bool

	log    *persist.Log
	seq    int64
	waitID int64

	wake   *wakeTimer
	cancel context.CancelFunc
}

// Engine owns every queue by name; all mutation happens on Run's
// goroutine.
type Engine struct {
	mailbox chan any
	clock   clock.Clock
	rootDir string

	queues map[string]*queueState

	dlqForward messaging.Producer
}

func New(c clock.Clock, mailboxSize int, rootDir string, opts ...Option) *Engine {
	e := &Engine{
		mailbox: make(chan any, mailboxSize),
		clock:   c,
		rootDir: rootDir,
		queues:  make(map[string]*queueState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Submit(ctx context.Context, cmd any) error {
	select {
	case e.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		for _, q := range e.queues {
			q.cancel()
			_ = q.log.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-e.mailbox:
			if !ok {
				return nil
			}
			e.dispatch(ctx, cmd)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case *CreateCmd:
		c.Reply <- e.handleCreate(ctx, c)
	case *DeleteCmd:
		c.Reply <- e.handleDelete(c)
	case *ExistsCmd:
		_, ok := e.queues[c.Name]
		c.Reply <- ok
	case *PushCmd:
		c.Reply <- e.handlePush(c)
	case *ConsumeCmd:
		e.handleConsume(ctx, c)
	case *AckCmd:
		c.Reply <- e.handleAck(c)
	case *NackCmd:
		c.Reply <- e.handleNack(ctx, c)
	case *sweepCmd:
		e.sweep(ctx, c.Name)
	case *waiterTimeoutCmd:
		e.expireWaiter(c.Name, c.WaiterID)
	case *SnapshotCmd:
		c.Reply <- e.handleSnapshot(c)
	case *MessagesCmd:
		c.Reply <- e.handleMessages(c)
	default:
		logger.L().Error("queue engine received unknown command type")
	}
}

// CreateCmd implements CREATE(name, policy).
type CreateCmd struct {
	Name   string
	Policy Policy
	Reply  chan error
}

func (e *Engine) handleCreate(ctx context.Context, c *CreateCmd) error {
	if existing, ok := e.queues[c.Name]; ok {
		if existing.policy.Equal(c.Policy) {
			return nil
		}
		return errors.Conflict("queue already exists with a different policy", nil)
	}

	q, err := e.newQueueState(ctx, c.Name, c.Policy, false)
	if err != nil {
		return err
	}
	e.queues[c.Name] = q
	return nil
}

func (e *Engine) newQueueState(ctx context.Context, name string, policy Policy, isDLQ bool) (*queueState, error) {
	log, err := persist.Open(filepath.Join(e.rootDir, name), policy.Persistence)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithCancel(ctx)
	q := &queueState{
		name:      name,
		policy:    policy,
		pending:   newIDHeap(),
		scheduled: newIDHeap(),
		inflight:  newIDHeap(),
		arena:     make(map[string]*Message),
		waiters:   newWaiterQueue(),
		dlqName:   name + dlqSuffix,
		isDLQ:     isDLQ,
		log:       log,
		wake:      newWakeTimer(),
		cancel:    cancel,
	}

	concurrency.SafeGo(qctx, func() { e.runWaker(qctx, q) })

	if err := e.replay(q); err != nil {
		return nil, err
	}

	return q, nil
}

// runWaker feeds a sweep command back into the engine's own mailbox
// whenever a scheduled or in-flight deadline is reached. The delay
// queue carries no payload of its own significance — the heaps remain
// the source of truth; this goroutine is purely a timer.
func (e *Engine) runWaker(ctx context.Context, q *queueState) {
	for {
		err := q.wake.WaitContext(ctx)
		if err != nil {
			return
		}
		select {
		case e.mailbox <- &sweepCmd{Name: q.name}:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) armWake(q *queueState, d time.Duration) {
	q.wake.Arm(d)
}

// DeleteCmd implements DELETE(name).
type DeleteCmd struct {
	Name  string
	Reply chan error
}

func (e *Engine) handleDelete(c *DeleteCmd) error {
	q, ok := e.queues[c.Name]
	if !ok {
		return nil
	}
	q.cancel()
	_ = q.log.Close()
	delete(e.queues, c.Name)
	return nil
}

func newMessageID() string {
	return uuid.New().String()
}
