// Package cache is the short-TTL snapshot cache behind the admin HTTP
// surface (see internal/admin): a handful of goroutines serving
// concurrent dashboard polls share one cached copy of an engine
// snapshot instead of resubmitting a command to the engine mailbox on
// every request. There is no Redis adapter here — the admin surface is
// meant to run embedded in the same process as the engines it fronts,
// so only the in-memory adapter exists.
//
//	import "github.com/emanuel-epifani/nexo/pkg/cache/adapters/memory"
//
//	c := memory.New()
//	defer c.Close()
//
//	err := c.Set(ctx, "queue:snapshot", summaries, 200*time.Millisecond)
//	err = c.Get(ctx, "queue:snapshot", &summaries)
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable snapshots behind a string key with a
// TTL. It intentionally has no Incr: nothing here counts, it only
// memoizes.
type Cache interface {
	// Get retrieves a value by key and unmarshals into dest.
	// Returns errors.NotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value with a TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Close releases all resources.
	Close() error
}
