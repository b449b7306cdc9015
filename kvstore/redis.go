package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// RedisStore implements interfaces.KVStore over a Redis-compatible server.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore connects to the store at the given URL
// (redis://[user:pass@]host:port/db).
func NewRedisStore(url string, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid KV store URL: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), log: log}, nil
}

// HGetAll returns all fields of a hash, or an empty map if the key is absent.
func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return fields, nil
}

// HSet writes fields into a hash.
func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	values := make([]any, 0, len(fields)*2)
	for name, value := range fields {
		values = append(values, name, value)
	}
	if err := s.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// HIncrBy atomically increments an integer hash field.
func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	value, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return value, nil
}

// Get returns a string value, mapping redis.Nil to interfaces.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", interfaces.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set writes a string value with an optional TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetNX writes a string value only if the key does not exist.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	won, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return won, nil
}

// SAdd adds members to a set.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	values := make([]any, len(members))
	for i, m := range members {
		values[i] = m
	}
	if err := s.client.SAdd(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

// SRem removes members from a set.
func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	values := make([]any, len(members))
	for i, m := range members {
		values[i] = m
	}
	if err := s.client.SRem(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", key, err)
	}
	return nil
}

// SMembers returns all members of a set.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return members, nil
}

// Scan returns all keys matching a glob-style pattern. It iterates the full
// cursor rather than relying on a single SCAN page.
func (s *RedisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Del removes keys.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

// Expire sets a TTL on an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
