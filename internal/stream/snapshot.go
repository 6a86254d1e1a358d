package stream

// SnapshotCmd requests the admin summary of every topic (spec §4.8).
type SnapshotCmd struct {
	Reply chan []TopicSummary
}

type GroupSummary struct {
	ID               string `json:"id"`
	CommittedOffset  uint64 `json:"committed_offset"`
}

type PartitionSummary struct {
	ID         int            `json:"id"`
	LastOffset uint64         `json:"last_offset"`
	Groups     []GroupSummary `json:"groups"`
}

type TopicSummary struct {
	Name       string             `json:"name"`
	Partitions []PartitionSummary `json:"partitions"`
}

func (e *Engine) handleSnapshot() []TopicSummary {
	var out []TopicSummary
	for name, t := range e.topics {
		ts := TopicSummary{Name: name}
		for _, p := range t.partitions {
			ps := PartitionSummary{ID: p.id, LastOffset: p.lastOffset}
			for gname, g := range t.groups {
				ps.Groups = append(ps.Groups, GroupSummary{ID: gname, CommittedOffset: g.committed[p.id]})
			}
			ts.Partitions = append(ts.Partitions, ps)
		}
		out = append(out, ts)
	}
	return out
}

// MessagesCmd requests a paginated page of one partition's records,
// for the /api/stream/{topic}/{partition}/messages admin endpoint.
type MessagesCmd struct {
	Topic     string
	Partition int
	From      uint64
	Limit     int
	Reply     chan MessagesResult
}

type RecordView struct {
	Offset    uint64 `json:"offset"`
	Timestamp string `json:"ts"`
	Payload   []byte `json:"payload"`
}

type MessagesResult struct {
	Messages []RecordView `json:"messages"`
	Total    int          `json:"total"`
}

func (e *Engine) handleMessages(c *MessagesCmd) MessagesResult {
	t, ok := e.topics[c.Topic]
	if !ok || c.Partition < 0 || c.Partition >= len(t.partitions) {
		return MessagesResult{}
	}
	p := t.partitions[c.Partition]

	limit := c.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	from := c.From
	if from < p.baseOffset {
		from = p.baseOffset
	}
	start := int(from - p.baseOffset)
	if start >= len(p.records) {
		return MessagesResult{Total: len(p.records)}
	}
	end := start + limit
	if end > len(p.records) {
		end = len(p.records)
	}

	res := MessagesResult{Total: len(p.records)}
	for _, rec := range p.records[start:end] {
		res.Messages = append(res.Messages, RecordView{
			Offset:    rec.Offset,
			Timestamp: rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Payload:   rec.Payload,
		})
	}
	return res
}
