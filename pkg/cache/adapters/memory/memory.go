package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/emanuel-epifani/nexo/pkg/errors"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a cache.Cache backed by a plain map, scoped to one
// process. Expired entries are never removed: Get reports them as not
// found, and they stay in the map until the next Set of the same key
// overwrites them. There is no background sweep.
type MemoryCache struct {
	items map[string]item
	mu    sync.RWMutex
}

func New() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]item),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok {
		return errors.New(errors.CodeNotFound, "key not found", nil)
	}

	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		return errors.New(errors.CodeNotFound, "key expired", nil)
	}

	return json.Unmarshal(item.value, dest)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal")
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.items[key] = item{
		value:     data,
		expiresAt: expiresAt,
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]item)
	return nil
}
