package stream

import (
	"github.com/emanuel-epifani/nexo/internal/wire"
	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// PublishCmd implements PUBLISH(topic, payload).
type PublishCmd struct {
	Topic   string
	Payload []byte
	Reply   chan PublishResult
}

type PublishResult struct {
	Partition int
	Offset    uint64
	Err       error
}

func (e *Engine) handlePublish(c *PublishCmd) PublishResult {
	t, ok := e.topics[c.Topic]
	if !ok {
		return PublishResult{Err: errors.NotFound("stream does not exist", nil)}
	}

	p := t.partitions[t.rrCounter%len(t.partitions)]
	t.rrCounter++

	rec := Record{
		Offset:    p.lastOffset,
		Timestamp: e.clock.Now(),
		Payload:   c.Payload,
	}
	p.lastOffset++
	p.records = append(p.records, rec)
	p.bytes += int64(len(rec.Payload))

	e.appendRecord(p, rec)
	e.mirrorToSink(c.Topic, p.id, rec)

	return PublishResult{Partition: p.id, Offset: rec.Offset}
}

// JoinCmd implements JOIN(topic, group, client_id).
type JoinCmd struct {
	Topic    string
	Group    string
	ClientID string
	Reply    chan JoinResult
}

type JoinResult struct {
	GenerationID uint64
	Assigned     []int
	Err          error
}

func (e *Engine) handleJoin(c *JoinCmd) JoinResult {
	t, ok := e.topics[c.Topic]
	if !ok {
		return JoinResult{Err: errors.NotFound("stream does not exist", nil)}
	}

	g, ok := t.groups[c.Group]
	if !ok {
		g = &group{
			id:        c.Group,
			members:   make(map[string]*member),
			committed: make(map[int]uint64),
		}
		for _, p := range t.partitions {
			g.committed[p.id] = 0
		}
		t.groups[c.Group] = g
	}

	if _, exists := g.members[c.ClientID]; !exists {
		g.members[c.ClientID] = &member{clientID: c.ClientID}
		rebalance(t, g)
	}

	return JoinResult{
		GenerationID: g.generationID,
		Assigned:     g.members[c.ClientID].assigned,
	}
}

// LeaveCmd implements LEAVE(topic, group, client_id), called by the
// connection layer when a member's connection closes.
type LeaveCmd struct {
	Topic    string
	Group    string
	ClientID string
	Reply    chan error
}

func (e *Engine) handleLeave(c *LeaveCmd) error {
	t, ok := e.topics[c.Topic]
	if !ok {
		return nil
	}
	g, ok := t.groups[c.Group]
	if !ok {
		return nil
	}
	if _, exists := g.members[c.ClientID]; !exists {
		return nil
	}
	delete(g.members, c.ClientID)
	rebalance(t, g)
	return nil
}

// FetchCmd implements FETCH(topic, group, generation_id, partition, from_offset, limit).
type FetchCmd struct {
	Topic        string
	Group        string
	GenerationID uint64
	Partition    int
	FromOffset   uint64
	Limit        int
	Reply        chan FetchResult
}

type FetchResult struct {
	Records []Record
	Err     error
}

func (e *Engine) handleFetch(c *FetchCmd) FetchResult {
	t, ok := e.topics[c.Topic]
	if !ok {
		return FetchResult{Err: errors.NotFound("stream does not exist", nil)}
	}
	g, ok := t.groups[c.Group]
	if !ok {
		return FetchResult{Err: errors.NotFound("consumer group does not exist", nil)}
	}
	if c.GenerationID < g.generationID {
		return FetchResult{Err: errors.RebalanceNeeded("stale generation", nil)}
	}
	if c.Partition < 0 || c.Partition >= len(t.partitions) {
		return FetchResult{Err: errors.InvalidArgument("unknown partition", nil)}
	}

	p := t.partitions[c.Partition]
	from := c.FromOffset
	if from < p.baseOffset {
		from = p.baseOffset
	}
	if from >= p.lastOffset {
		return FetchResult{}
	}

	limit := c.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	start := int(from - p.baseOffset)
	end := start + limit
	if end > len(p.records) {
		end = len(p.records)
	}

	out := make([]Record, end-start)
	copy(out, p.records[start:end])
	return FetchResult{Records: out}
}

// CommitCmd implements COMMIT(topic, group, generation_id, partition, next_offset).
type CommitCmd struct {
	Topic        string
	Group        string
	GenerationID uint64
	Partition    int
	NextOffset   uint64
	Reply        chan error
}

func (e *Engine) handleCommit(c *CommitCmd) error {
	t, ok := e.topics[c.Topic]
	if !ok {
		return errors.NotFound("stream does not exist", nil)
	}
	g, ok := t.groups[c.Group]
	if !ok {
		return errors.NotFound("consumer group does not exist", nil)
	}
	if c.GenerationID < g.generationID {
		return errors.RebalanceNeeded("stale generation", nil)
	}

	if c.NextOffset > g.committed[c.Partition] {
		g.committed[c.Partition] = c.NextOffset
	}
	// commits at or below the current committed value are silently
	// dropped, not an error: a replayed or duplicate commit is routine
	// under at-least-once delivery.
	return nil
}

func (e *Engine) appendRecord(p *partition, rec Record) {
	enc := wire.NewEncoder()
	enc.PutU64(rec.Offset)
	enc.PutU64(uint64(rec.Timestamp.UnixNano()))
	enc.PutBytes(rec.Payload)
	if err := p.log.Append(enc.Bytes()); err != nil {
		_ = err
	}
}
