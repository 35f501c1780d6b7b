// Package cache provides the latest-price cache tier. The memory backend
// is the default; the redis backend serves multi-process deployments.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value store with per-entry absolute expiry. Callers hold
// a reference rather than reaching for shared global state, so tests can
// substitute their own implementation.
type Cache interface {
	// Get returns the value for key, or ok=false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any existing entry, and
	// expires it after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate unconditionally removes key.
	Invalidate(ctx context.Context, key string) error

	// Close releases any background resources held by the cache.
	Close() error
}
