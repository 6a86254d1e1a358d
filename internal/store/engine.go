// Package store implements the key-value engine: a sharded map with
// per-key absolute expiry, driven from a single owning goroutine per
// SPEC_FULL.md's actor-per-engine model.
package store

import (
	"context"
	"time"

	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// MaxValueSize is the largest payload accepted by Set; larger payloads
// fail with errors.CodeInvalidArgument per spec §4.3 ("fails with
// TooLarge").
const MaxValueSize = 8 * 1024 * 1024

// idleExpirySweep is the fallback tick when no command arrives to
// coalesce expiry checking onto; keeps expired keys from lingering
// indefinitely on an otherwise-idle store.
const idleExpirySweep = 200 * time.Millisecond

// Entry is one Store value together with its lifecycle timestamps.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time // zero value means no expiry
}

// Engine owns the key→entry map exclusively; all access is serialized
// through its mailbox.
type Engine struct {
	mailbox chan any
	clock   clock.Clock

	data   *keyShards
	expiry *expiryHeap
}

// New creates a Store engine. mailboxSize bounds the back-pressure
// applied to connection tasks per SPEC_FULL.md §4.1.
func New(c clock.Clock, mailboxSize int) *Engine {
	return &Engine{
		mailbox: make(chan any, mailboxSize),
		clock:   c,
		data:    newKeyShards(),
		expiry:  newExpiryHeap(),
	}
}

// Submit enqueues a command, blocking if the mailbox is full (the
// broker's default back-pressure policy per spec §7).
func (e *Engine) Submit(ctx context.Context, cmd any) error {
	select {
	case e.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox until ctx is canceled. It is the sole writer
// of e.data and e.expiry.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(idleExpirySweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.sweepExpired()
		case cmd, ok := <-e.mailbox:
			if !ok {
				return nil
			}
			e.dispatch(cmd)
			e.sweepExpired()
		}
	}
}

func (e *Engine) dispatch(cmd any) {
	switch c := cmd.(type) {
	case *SetCmd:
		c.Reply <- e.handleSet(c)
	case *GetCmd:
		c.Reply <- e.handleGet(c)
	case *DelCmd:
		e.handleDel(c)
		close(c.Reply)
	case *LenCmd:
		c.Reply <- e.data.Len()
	case *SnapshotCmd:
		c.Reply <- e.handleSnapshot(c)
	default:
		logger.L().Error("store engine received unknown command type")
	}
}

// SetCmd implements SET(key, value, ttl_ms?).
type SetCmd struct {
	Key   string
	Value []byte
	TTL   time.Duration // zero means no expiry
	Reply chan error
}

func (e *Engine) handleSet(c *SetCmd) error {
	if len(c.Value) > MaxValueSize {
		return errors.InvalidArgument("value exceeds maximum size", nil)
	}

	entry := &Entry{Value: c.Value, CreatedAt: e.clock.Now()}
	if c.TTL > 0 {
		entry.ExpiresAt = e.clock.Now().Add(c.TTL)
		e.expiry.Schedule(c.Key, entry.ExpiresAt.UnixNano())
	}
	e.data.Set(c.Key, entry)
	return nil
}

// GetCmd implements GET(key) -> value?.
type GetCmd struct {
	Key   string
	Reply chan GetResult
}

// GetResult reports a typed "not found" rather than an error, per spec
// §4.3.
type GetResult struct {
	Value []byte
	Found bool
}

func (e *Engine) handleGet(c *GetCmd) GetResult {
	entry, ok := e.data.Get(c.Key)
	if !ok {
		return GetResult{}
	}
	if e.isExpired(entry) {
		return GetResult{}
	}
	return GetResult{Value: entry.Value, Found: true}
}

// DelCmd implements DEL(key).
type DelCmd struct {
	Key   string
	Reply chan struct{}
}

func (e *Engine) handleDel(c *DelCmd) {
	e.data.Delete(c.Key)
}

// LenCmd returns the total key count, expired or not (expired keys are
// reclaimed lazily by the sweep, not synchronously on Len).
type LenCmd struct {
	Reply chan int
}

func (e *Engine) isExpired(entry *Entry) bool {
	return !entry.ExpiresAt.IsZero() && !entry.ExpiresAt.After(e.clock.Now())
}

// sweepExpired pops every due entry off the expiry heap and removes it
// from the map iff its current expiry still matches — a key that was
// re-Set after being scheduled for expiry keeps its newer value.
func (e *Engine) sweepExpired() {
	now := e.clock.Now()
	for {
		key, expiresAt, ok := e.expiry.Peek()
		if !ok || expiresAt > now.UnixNano() {
			return
		}
		e.expiry.PopMin()

		entry, ok := e.data.Get(key)
		if !ok {
			continue
		}
		if entry.ExpiresAt.UnixNano() == expiresAt {
			e.data.Delete(key)
		}
	}
}
