package interfaces

import (
	"context"
	"time"
)

// KeyValueStore is the TTL'd key/value surface backing the cache layer and
// the aggregate counters. Values are opaque bytes (UTF-8 JSON by
// convention); counters are stored as decimal integers.
type KeyValueStore interface {
	// Get retrieves a value by key, returns ErrKeyNotFound when absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces a value. A zero ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrBy atomically adds delta to the integer at key, creating it at
	// zero first. Returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// HIncrBy atomically adds delta to a field of the map at key.
	// Returns the new field value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// GetInt reads the counter at key, zero when absent.
	GetInt(ctx context.Context, key string) (int64, error)

	// HGetAll returns all fields of the map at key, empty when absent.
	HGetAll(ctx context.Context, key string) (map[string]int64, error)
}
