package stream

import (
	"path/filepath"
	"time"

	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/wire"
)

func unixNanoToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns))
}

// replayPartition rebuilds one partition's record buffer from its
// durable log after a restart.
func (e *Engine) replayPartition(t *topicState, p *partition) error {
	if t.persistence == persist.Memory {
		return nil
	}

	dir := filepath.Join(e.rootDir, t.name, partitionDirName(p.id))
	return persist.Replay(dir, func(raw []byte) error {
		dec := wire.NewDecoder(raw)
		offset, err := dec.U64()
		if err != nil {
			return err
		}
		ts, err := dec.U64()
		if err != nil {
			return err
		}
		payload, err := dec.Bytes()
		if err != nil {
			return err
		}

		p.records = append(p.records, Record{
			Offset:    offset,
			Timestamp: unixNanoToTime(ts),
			Payload:   payload,
		})
		p.bytes += int64(len(payload))
		if offset+1 > p.lastOffset {
			p.lastOffset = offset + 1
		}
		return nil
	})
}
