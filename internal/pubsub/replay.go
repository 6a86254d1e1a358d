package pubsub

import (
	"time"

	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/wire"
)

const (
	recordRetain byte = 1
	recordClear  byte = 2
)

func unixNanoToTime(ns uint64) time.Time { return time.Unix(0, int64(ns)) }

// appendRetainRecord durably records a retained publish (or a clear,
// when payload is nil) so a restart can rebuild the trie's retained
// values without replaying every publish that ever happened.
func (e *Engine) appendRetainRecord(topic string, payload []byte) error {
	enc := wire.NewEncoder()
	if payload == nil {
		enc.PutU8(recordClear).PutString(topic)
	} else {
		enc.PutU8(recordRetain).PutString(topic).PutBytes(payload).PutU64(uint64(e.clock.Now().UnixNano()))
	}
	return e.retainedLog.Append(enc.Bytes())
}

func (e *Engine) replayRetained() error {
	return persist.Replay(e.retainedDir, func(record []byte) error {
		dec := wire.NewDecoder(record)
		kind, err := dec.U8()
		if err != nil {
			return err
		}
		topic, err := dec.String()
		if err != nil {
			return err
		}

		segments := splitTopic(topic)
		n := e.getOrCreateNode(segments)

		switch kind {
		case recordRetain:
			payload, err := dec.Bytes()
			if err != nil {
				return err
			}
			ts, err := dec.U64()
			if err != nil {
				return err
			}
			n.hasRetained = true
			n.retained = payload
			n.retainedAt = unixNanoToTime(ts)
		case recordClear:
			n.hasRetained = false
			n.retained = nil
		}
		return nil
	})
}
