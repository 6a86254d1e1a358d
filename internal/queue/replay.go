package queue

import (
	"path/filepath"
	"time"

	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/wire"
)

func unixNanoToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns))
}

// replay rebuilds a queue's in-memory state from its durable log after
// a restart. Only Push/Ack/Nack are logged (see commands.go); replay
// reconstructs every surviving message as Pending regardless of its
// state at crash time, since a Scheduled ready-time or an in-flight
// lease from before the crash carries no meaning once the process
// that owned it is gone. A supervised restart always hands every
// outstanding message back to the next consumer.
func (e *Engine) replay(q *queueState) error {
	if q.policy.Persistence == persist.Memory {
		return nil
	}

	dir := filepath.Join(e.rootDir, q.name)
	return persist.Replay(dir, func(record []byte) error {
		dec := wire.NewDecoder(record)
		kind, err := dec.U8()
		if err != nil {
			return err
		}
		id, err := dec.String()
		if err != nil {
			return err
		}

		switch kind {
		case recordPush:
			payload, err := dec.Bytes()
			if err != nil {
				return err
			}
			priority, err := dec.U8()
			if err != nil {
				return err
			}
			attempts, err := dec.U64()
			if err != nil {
				return err
			}
			enqueuedAt, err := dec.U64()
			if err != nil {
				return err
			}
			q.seq++
			msg := &Message{
				ID:         id,
				Payload:    payload,
				Priority:   priority,
				Attempts:   int(attempts),
				State:      StatePending,
				EnqueuedAt: unixNanoToTime(enqueuedAt),
				seq:        q.seq,
			}
			q.arena[id] = msg
			q.pending.PushItem(msg.ID, pendingScore(msg.Priority, msg.seq))

		case recordAck:
			delete(q.arena, id)

		case recordNack:
			// priority was already captured by the Push record that put
			// this message in the arena, and the message is already
			// Pending and will be redelivered; only the attempts count
			// has moved on since the Push record.
			if _, err := dec.Bytes(); err != nil {
				return err
			}
			if _, err := dec.U8(); err != nil {
				return err
			}
			attempts, err := dec.U64()
			if err != nil {
				return err
			}
			if msg, ok := q.arena[id]; ok {
				msg.Attempts = int(attempts)
			}
		}

		return nil
	})
}
