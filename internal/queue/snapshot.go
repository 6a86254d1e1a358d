package queue

// SnapshotCmd requests the admin summary of every queue (spec §4.8).
type SnapshotCmd struct {
	Reply chan []QueueSummary
}

// QueueSummary is one row of the /api/queue response.
type QueueSummary struct {
	Name     string `json:"name"`
	Pending  int    `json:"pending"`
	InFlight int    `json:"inflight"`
	Scheduled int   `json:"scheduled"`
	DLQ      int    `json:"dlq"`
}

func (e *Engine) handleSnapshot(c *SnapshotCmd) []QueueSummary {
	var out []QueueSummary
	for name, q := range e.queues {
		if q.isDLQ {
			continue
		}
		summary := QueueSummary{
			Name:      name,
			Pending:   q.pending.Size(),
			InFlight:  q.inflight.Size(),
			Scheduled: q.scheduled.Size(),
		}
		if dlq, ok := e.queues[q.dlqName]; ok {
			summary.DLQ = dlq.pending.Size()
		}
		out = append(out, summary)
	}
	return out
}

// MessagesCmd requests a paginated page of one queue's messages, for
// the /api/queue/{name}/messages admin endpoint.
type MessagesCmd struct {
	Name   string
	Limit  int
	Offset int
	Reply  chan MessagesResult
}

type MessageView struct {
	ID       string `json:"id"`
	State    State  `json:"state"`
	Priority uint8  `json:"priority"`
	Attempts int    `json:"attempts"`
}

type MessagesResult struct {
	Messages []MessageView `json:"messages"`
	Total    int           `json:"total"`
}

func (e *Engine) handleMessages(c *MessagesCmd) MessagesResult {
	q, ok := e.queues[c.Name]
	if !ok {
		return MessagesResult{}
	}

	limit := c.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	res := MessagesResult{Total: len(q.arena)}
	skipped := 0
	for _, msg := range q.arena {
		if skipped < c.Offset {
			skipped++
			continue
		}
		if len(res.Messages) >= limit {
			continue
		}
		res.Messages = append(res.Messages, MessageView{
			ID:       msg.ID,
			State:    msg.State,
			Priority: msg.Priority,
			Attempts: msg.Attempts,
		})
	}
	return res
}
