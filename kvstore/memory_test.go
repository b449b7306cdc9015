package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilkey/vigil-backend/interfaces"
)

func TestMemoryStoreStringsAndTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v", time.Hour))
	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	s.AdvanceTime(2 * time.Hour)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	won, err := s.SetNX(ctx, "lock", "a", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.SetNX(ctx, "lock", "b", time.Hour)
	require.NoError(t, err)
	assert.False(t, won)

	value, err := s.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", value)

	// Expiry frees the key for the next writer.
	s.AdvanceTime(2 * time.Hour)
	won, err = s.SetNX(ctx, "lock", "c", 0)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryStoreHashes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fields, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "x"}))
	require.NoError(t, s.HSet(ctx, "h", map[string]string{"b": "y"}))

	fields, err = s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "y"}, fields)

	value, err := s.HIncrBy(ctx, "h", "a", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, value)

	value, err = s.HIncrBy(ctx, "h", "counter", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, value)
}

func TestMemoryStoreSets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SAdd(ctx, "set", "a", "b"))
	require.NoError(t, s.SAdd(ctx, "set", "b", "c"))

	members, err := s.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, members)

	require.NoError(t, s.SRem(ctx, "set", "b"))
	members, err = s.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, members)
}

func TestMemoryStoreScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.HSet(ctx, "recovery:share:g1:o1", map[string]string{"x": "1"}))
	require.NoError(t, s.HSet(ctx, "recovery:share:g1:o2", map[string]string{"x": "1"}))
	require.NoError(t, s.HSet(ctx, "recovery:share:g2:o1", map[string]string{"x": "1"}))
	require.NoError(t, s.Set(ctx, "recovery:config:o1", "irrelevant", 0))

	keys, err := s.Scan(ctx, "recovery:share:g1:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recovery:share:g1:o1", "recovery:share:g1:o2"}, keys)
}

func TestMemoryStoreDelAndExpire(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.HSet(ctx, "b", map[string]string{"f": "1"}))
	require.NoError(t, s.Del(ctx, "a", "b", "never-existed"))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, s.HSet(ctx, "session", map[string]string{"status": "pending"}))
	require.NoError(t, s.Expire(ctx, "session", time.Hour))
	s.AdvanceTime(2 * time.Hour)

	fields, err := s.HGetAll(ctx, "session")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
