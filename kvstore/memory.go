package kvstore

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// MemoryStore is an in-process interfaces.KVStore with the same observable
// semantics as RedisStore, including TTL expiry and atomic SetNX. Tests drive
// expiry deterministically through AdvanceTime.
type MemoryStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	strings map[string]string
	sets    map[string]map[string]struct{}
	expiry  map[string]time.Time
	offset  time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:  make(map[string]map[string]string),
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
		expiry:  make(map[string]time.Time),
	}
}

// AdvanceTime shifts the store's clock forward, expiring any records whose
// TTL falls inside the window. Test-only.
func (s *MemoryStore) AdvanceTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += d
}

func (s *MemoryStore) now() time.Time {
	return time.Now().Add(s.offset)
}

// purgeLocked drops the key everywhere if its TTL has passed. Callers hold mu.
func (s *MemoryStore) purgeLocked(key string) {
	deadline, ok := s.expiry[key]
	if !ok || s.now().Before(deadline) {
		return
	}
	delete(s.hashes, key)
	delete(s.strings, key)
	delete(s.sets, key)
	delete(s.expiry, key)
}

func (s *MemoryStore) setTTLLocked(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expiry[key] = s.now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
}

// HGetAll returns a copy of the hash fields, or an empty map if absent.
func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	fields := make(map[string]string, len(s.hashes[key]))
	for name, value := range s.hashes[key] {
		fields[name] = value
	}
	return fields, nil
}

// HSet writes fields into a hash.
func (s *MemoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	hash, ok := s.hashes[key]
	if !ok {
		hash = make(map[string]string, len(fields))
		s.hashes[key] = hash
	}
	for name, value := range fields {
		hash[name] = value
	}
	return nil
}

// HIncrBy increments an integer hash field.
func (s *MemoryStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	hash, ok := s.hashes[key]
	if !ok {
		hash = make(map[string]string)
		s.hashes[key] = hash
	}
	current, _ := strconv.ParseInt(hash[field], 10, 64)
	current += delta
	hash[field] = strconv.FormatInt(current, 10)
	return current, nil
}

// Get returns a string value or interfaces.ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	value, ok := s.strings[key]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return value, nil
}

// Set writes a string value with an optional TTL.
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strings[key] = value
	s.setTTLLocked(key, ttl)
	return nil
}

// SetNX writes a string value only if the key does not exist.
func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	if _, exists := s.strings[key]; exists {
		return false, nil
	}
	s.strings[key] = value
	s.setTTLLocked(key, ttl)
	return true, nil
}

// SAdd adds members to a set.
func (s *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem removes members from a set.
func (s *MemoryStore) SRem(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	set := s.sets[key]
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// SMembers returns all members of a set.
func (s *MemoryStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

// Scan returns all keys matching a glob-style pattern.
func (s *MemoryStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	seen := make(map[string]struct{})
	for key := range s.hashes {
		seen[key] = struct{}{}
	}
	for key := range s.strings {
		seen[key] = struct{}{}
	}
	for key := range s.sets {
		seen[key] = struct{}{}
	}
	for key := range seen {
		s.purgeLocked(key)
	}
	for key := range s.hashes {
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	for key := range s.strings {
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	for key := range s.sets {
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Del removes keys.
func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.hashes, key)
		delete(s.strings, key)
		delete(s.sets, key)
		delete(s.expiry, key)
	}
	return nil
}

// Expire sets a TTL on an existing key.
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)
	s.setTTLLocked(key, ttl)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
