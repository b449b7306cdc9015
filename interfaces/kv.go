package interfaces

import (
	"context"
	"time"
)

// KVStore is the thin abstraction over the shared key-value store. It exposes
// exactly the primitives the two services rely on: typed hash records, string
// records with TTL, set membership, key-pattern scans, and the single-key
// atomic operations (SetNX, HIncrBy) that the approval state machine needs.
//
// All methods may block on I/O and honor context cancellation. Implementations
// must make SetNX atomic: it is the arbiter for concurrent guardian approvals.
type KVStore interface {
	// HGetAll returns all fields of a hash, or an empty map if the key does
	// not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet writes the given fields into a hash, creating it if absent.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HIncrBy atomically increments an integer hash field and returns the new
	// value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Get returns a string value. Returns ErrNotFound if the key does not
	// exist or has expired.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a string value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes a string value only if the key does not exist, returning
	// whether the write won. A zero ttl means no expiry.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// SAdd adds members to a set.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from a set.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of a set; order is unspecified.
	SMembers(ctx context.Context, key string) ([]string, error)

	// Scan returns all keys matching a glob-style pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
