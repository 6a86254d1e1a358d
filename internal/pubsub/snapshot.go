package pubsub

import (
	"strings"
	"time"
)

// SnapshotCmd requests the admin view of the topic tree (spec §4.8).
// Limit/Offset/Search paginate and substring-filter the topic list.
type SnapshotCmd struct {
	Limit  int
	Offset int
	Search string
	Reply  chan Snapshot
}

type TopicView struct {
	FullPath      string    `json:"full_path"`
	Subscribers   int       `json:"subscribers"`
	RetainedValue string    `json:"retained_value,omitempty"`
	RetainedAt    time.Time `json:"retained_at,omitempty"`
}

type WildcardCounts struct {
	MultiLevel  int `json:"multi_level"`
	SingleLevel int `json:"single_level"`
}

type Snapshot struct {
	ActiveClients int             `json:"active_clients"`
	TotalTopics   int             `json:"total_topics"`
	Topics        []TopicView     `json:"topics"`
	Wildcards     WildcardCounts  `json:"wildcards"`
}

func (e *Engine) handleSnapshot(c *SnapshotCmd) Snapshot {
	snap := Snapshot{ActiveClients: len(e.subscribers)}

	var all []TopicView
	e.collectTopics(e.root, nil, &all)
	snap.TotalTopics = len(all)

	if c.Search != "" {
		filtered := all[:0]
		for _, t := range all {
			if strings.Contains(t.FullPath, c.Search) {
				filtered = append(filtered, t)
			}
		}
		all = filtered
	}

	limit := c.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	offset := c.Offset
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		snap.Topics = all[offset:end]
	}

	for _, list := range e.wildcardIndex {
		for _, ws := range list {
			if ws.pattern != "" && strings.Contains(ws.pattern, wildcardMulti) {
				snap.Wildcards.MultiLevel++
			} else {
				snap.Wildcards.SingleLevel++
			}
		}
	}

	return snap
}

func (e *Engine) collectTopics(n *node, path []string, out *[]TopicView) {
	if len(n.subscribers) > 0 || n.hasRetained {
		view := TopicView{
			FullPath:    strings.Join(path, "/"),
			Subscribers: len(n.subscribers),
		}
		if n.hasRetained {
			view.RetainedValue = string(n.retained)
			view.RetainedAt = n.retainedAt
		}
		*out = append(*out, view)
	}
	for seg, child := range n.children {
		e.collectTopics(child, append(append([]string{}, path...), seg), out)
	}
}
