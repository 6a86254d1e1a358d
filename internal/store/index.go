package store

import (
	"container/heap"
	"fmt"

	"github.com/emanuel-epifani/nexo/pkg/concurrency"
)

// shardCount must be a power of two so getShard can mask instead of mod.
const shardCount = 64

type keyShard struct {
	mu   *concurrency.SmartRWMutex
	data map[string]*Entry
}

// keyShards is a fixed-width sharded map from key to Entry, splitting
// lock contention across shardCount buckets so one hot key's writer
// does not stall a Get on an unrelated key. Hashing is FNV-1a over the
// key bytes; bucket selection is a bitwise mask, not a modulo. Each
// shard's mutex runs in SmartRWMutex's fast path (DebugMode off) —
// the per-lock runtime.Caller overhead isn't worth paying on every
// Store command.
type keyShards struct {
	shards [shardCount]*keyShard
}

func newKeyShards() *keyShards {
	ks := &keyShards{}
	for i := range ks.shards {
		ks.shards[i] = &keyShard{
			mu:   concurrency.NewSmartRWMutex(concurrency.MutexConfig{Name: fmt.Sprintf("store-shard-%d", i)}),
			data: make(map[string]*Entry),
		}
	}
	return ks
}

func (ks *keyShards) shardFor(key string) *keyShard {
	var hash uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= 16777619
	}
	return ks.shards[hash&(shardCount-1)]
}

func (ks *keyShards) Get(key string) (*Entry, bool) {
	s := ks.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok
}

func (ks *keyShards) Set(key string, e *Entry) {
	s := ks.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
}

func (ks *keyShards) Delete(key string) {
	s := ks.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (ks *keyShards) Len() int {
	n := 0
	for _, s := range ks.shards {
		s.mu.RLock()
		n += len(s.data)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns a snapshot of every key across all shards. It is used
// only by the admin SnapshotCmd, which tolerates a view that goes
// stale the instant concurrent writers resume — Store itself never
// relies on the result being consistent.
func (ks *keyShards) Keys() []string {
	keys := make([]string, 0, ks.Len())
	for _, s := range ks.shards {
		s.mu.RLock()
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// expiryItem pairs a key with the unix-nano timestamp it expires at.
type expiryItem struct {
	key       string
	expiresAt int64
	index     int
}

// expiryHeap is a min-heap of keys ordered by expiry time, so
// sweepExpired only ever has to look at the single soonest-to-expire
// entry instead of scanning the whole map.
type expiryHeap struct {
	items []*expiryItem
}

func newExpiryHeap() *expiryHeap {
	h := &expiryHeap{}
	heap.Init(h)
	return h
}

func (h *expiryHeap) Len() int            { return len(h.items) }
func (h *expiryHeap) Less(i, j int) bool  { return h.items[i].expiresAt < h.items[j].expiresAt }
func (h *expiryHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}
func (h *expiryHeap) Push(x interface{}) {
	item := x.(*expiryItem)
	item.index = len(h.items)
	h.items = append(h.items, item)
}
func (h *expiryHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

// Schedule arranges for key to surface from Peek once expiresAt has
// passed.
func (h *expiryHeap) Schedule(key string, expiresAt int64) {
	heap.Push(h, &expiryItem{key: key, expiresAt: expiresAt})
}

// Peek returns the soonest-expiring key without removing it.
func (h *expiryHeap) Peek() (key string, expiresAt int64, ok bool) {
	if len(h.items) == 0 {
		return "", 0, false
	}
	top := h.items[0]
	return top.key, top.expiresAt, true
}

// PopMin removes and returns the soonest-expiring key.
func (h *expiryHeap) PopMin() (key string, expiresAt int64, ok bool) {
	if len(h.items) == 0 {
		return "", 0, false
	}
	item := heap.Pop(h).(*expiryItem)
	return item.key, item.expiresAt, true
}
