package store

// SnapshotCmd requests a bounded, point-in-time view of the store for
// the admin HTTP surface (spec §4.8).
type SnapshotCmd struct {
	Limit  int
	Offset int
	Reply  chan Snapshot
}

// KeyView is one row of the admin snapshot: a preview, not the full
// value, so a large payload does not blow up the response body.
type KeyView struct {
	Key          string `json:"key"`
	ValuePreview string `json:"value_preview"`
	CreatedAt    string `json:"created_at"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// Snapshot is the /api/store response body shape from spec §6.
type Snapshot struct {
	TotalKeys    int       `json:"total_keys"`
	ExpiringKeys int       `json:"expiring_keys"`
	Keys         []KeyView `json:"keys"`
}

const valuePreviewLen = 64

func (e *Engine) handleSnapshot(c *SnapshotCmd) Snapshot {
	limit := c.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	snap := Snapshot{}
	keys := e.data.Keys()
	snap.TotalKeys = len(keys)

	skipped := 0
	for _, key := range keys {
		entry, ok := e.data.Get(key)
		if !ok || e.isExpired(entry) {
			continue
		}
		if !entry.ExpiresAt.IsZero() {
			snap.ExpiringKeys++
		}
		if skipped < c.Offset {
			skipped++
			continue
		}
		if len(snap.Keys) >= limit {
			continue
		}
		snap.Keys = append(snap.Keys, toKeyView(key, entry))
	}
	return snap
}

func toKeyView(key string, entry *Entry) KeyView {
	preview := entry.Value
	if len(preview) > valuePreviewLen {
		preview = preview[:valuePreviewLen]
	}
	kv := KeyView{
		Key:          key,
		ValuePreview: string(preview),
		CreatedAt:    entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !entry.ExpiresAt.IsZero() {
		kv.ExpiresAt = entry.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return kv
}
