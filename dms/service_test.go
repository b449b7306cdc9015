package dms

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vigilkey/vigil-backend/blobstore"
	"github.com/vigilkey/vigil-backend/identity"
	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/kvstore"
)

func testPubkey(t *testing.T) interfaces.Pubkey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := interfaces.NewPubkey(base58.Encode(pub))
	require.NoError(t, err)
	return key
}

func testCiphertext(payload string) interfaces.Ciphertext {
	return interfaces.Ciphertext(base64.StdEncoding.EncodeToString([]byte(payload)))
}

type testEnv struct {
	svc      *Service
	store    *kvstore.MemoryStore
	resolver *identity.MockResolver
	blobs    *blobstore.MemoryBackend
	now      time.Time
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    kvstore.NewMemoryStore(),
		resolver: &identity.MockResolver{},
		blobs:    blobstore.NewMemoryBackend(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = NewService(env.store, env.resolver, env.blobs, logger)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *testEnv) allowUsername(t *testing.T, username string) {
	env.resolver.On("Resolve", mock.Anything, interfaces.Username(username)).
		Return(testPubkey(t), nil)
}

func TestCreateSwitch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("secret"), 24)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchActive, sw.Status)
	assert.WithinDuration(t, env.now.Add(24*time.Hour), sw.NextDeadline, time.Second)
	assert.False(t, sw.PayloadHandle.IsLocal())

	// Active switches sit in both indices.
	active, err := env.store.SMembers(ctx, activeIndexKey)
	require.NoError(t, err)
	assert.Contains(t, active, sw.ID.String())

	mine, err := env.store.SMembers(ctx, userIndexKey(sender))
	require.NoError(t, err)
	assert.Contains(t, mine, sw.ID.String())
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	for _, hours := range []int{0, -1, 8761} {
		_, err := env.svc.Create(ctx, sender, "alice", testCiphertext("x"), hours)
		assert.ErrorIs(t, err, interfaces.ErrValidation, "intervalHours=%d", hours)
	}

	// Boundary values are accepted.
	_, err := env.svc.Create(ctx, sender, "alice", testCiphertext("x"), 1)
	assert.NoError(t, err)
	_, err = env.svc.Create(ctx, sender, "alice", testCiphertext("x"), 8760)
	assert.NoError(t, err)
}

func TestCreateUnknownRecipient(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	env.resolver.On("Resolve", mock.Anything, interfaces.Username("ghost")).
		Return(interfaces.Pubkey(""), interfaces.ErrUnknownUsername)

	_, err := env.svc.Create(ctx, testPubkey(t), "ghost", testCiphertext("x"), 24)
	assert.ErrorIs(t, err, interfaces.ErrUnknownUsername)
}

func TestCreateFallsBackWhenBlobStoreDown(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")
	env.blobs.Failing = true

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("secret"), 1)
	require.NoError(t, err)
	assert.True(t, sw.PayloadHandle.IsLocal())

	// The fallback copy is retrievable through the switch's handle.
	payload, err := env.svc.fetchPayload(ctx, sw.PayloadHandle)
	require.NoError(t, err)
	assert.Equal(t, testCiphertext("secret"), payload)
}

func TestCheckInBumpsEachActiveSwitch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")
	env.allowUsername(t, "bob")

	short, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 1)
	require.NoError(t, err)
	long, err := env.svc.Create(ctx, sender, "bob", testCiphertext("b"), 48)
	require.NoError(t, err)

	env.advance(50 * time.Minute)
	count, latest, err := env.svc.CheckIn(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Each switch is bumped by its own interval; the returned deadline is the
	// latest among them.
	reloaded, err := env.svc.Switch(ctx, short.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, env.now.Add(1*time.Hour), reloaded.NextDeadline, time.Second)

	reloaded, err = env.svc.Switch(ctx, long.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, env.now.Add(48*time.Hour), reloaded.NextDeadline, time.Second)
	assert.WithinDuration(t, env.now.Add(48*time.Hour), latest, time.Second)
}

func TestCheckInWithNoSwitches(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)

	count, latest, err := env.svc.CheckIn(ctx, testPubkey(t))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, latest.IsZero())
}

func TestCancelSwitch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 24)
	require.NoError(t, err)

	require.NoError(t, env.svc.Cancel(ctx, sender, sw.ID))

	reloaded, err := env.svc.Switch(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchCancelled, reloaded.Status)

	// Gone from both indices.
	active, err := env.store.SMembers(ctx, activeIndexKey)
	require.NoError(t, err)
	assert.NotContains(t, active, sw.ID.String())
	mine, err := env.store.SMembers(ctx, userIndexKey(sender))
	require.NoError(t, err)
	assert.NotContains(t, mine, sw.ID.String())

	// Still visible as history.
	switches, err := env.svc.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, switches, 1)
	assert.Equal(t, interfaces.SwitchCancelled, switches[0].Status)

	// Cancelling twice, or a stranger cancelling, is a 404 either way.
	assert.ErrorIs(t, env.svc.Cancel(ctx, testPubkey(t), sw.ID), interfaces.ErrNotFound)
	assert.ErrorIs(t, env.svc.Cancel(ctx, sender, interfaces.FreshSwitchID()), interfaces.ErrNotFound)
}

func TestSweepTriggersOverdueSwitch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("goodbye"), 1)
	require.NoError(t, err)

	// Two hours later the 1-hour deadline is past.
	env.advance(2 * time.Hour)
	result, err := env.svc.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Total)
	assert.Empty(t, result.Errors)

	reloaded, err := env.svc.Switch(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchTriggered, reloaded.Status)
	assert.WithinDuration(t, env.now, reloaded.TriggeredAt, time.Second)

	active, err := env.store.SMembers(ctx, activeIndexKey)
	require.NoError(t, err)
	assert.NotContains(t, active, sw.ID.String())

	record, err := env.svc.Release(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ReleaseRecordType, record.Type)
	assert.Equal(t, sw.ID, record.SwitchID)
	assert.Equal(t, sender, record.SenderPubkey)
	assert.Equal(t, interfaces.Username("alice"), record.RecipientUsername)
	assert.Equal(t, testCiphertext("goodbye"), record.EncryptedMessage)
	assert.WithinDuration(t, env.now, record.TriggeredAt, time.Second)

	// Triggered switches stay in the owner's history.
	switches, err := env.svc.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, switches, 1)
	assert.Equal(t, interfaces.SwitchTriggered, switches[0].Status)
}

func TestSweepSkipsSwitchesWithFutureDeadlines(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 1)
	require.NoError(t, err)

	// Check in at t0+50m, then sweep at t0+65m: the bumped deadline
	// (t0+110m) is still ahead.
	env.advance(50 * time.Minute)
	_, _, err = env.svc.CheckIn(ctx, sender)
	require.NoError(t, err)

	env.advance(15 * time.Minute)
	result, err := env.svc.Process(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)

	reloaded, err := env.svc.Switch(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchActive, reloaded.Status)
}

func TestSweepReleasesLocalFallbackPayload(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")
	env.blobs.Failing = true

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("fallback"), 1)
	require.NoError(t, err)
	require.True(t, sw.PayloadHandle.IsLocal())

	env.advance(2 * time.Hour)
	result, err := env.svc.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	// The release record is identical to the happy path.
	record, err := env.svc.Release(ctx, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, testCiphertext("fallback"), record.EncryptedMessage)
}

func TestSweepCollectsResolveErrorsAndContinues(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")
	env.resolver.On("Resolve", mock.Anything, interfaces.Username("gone")).
		Return(testPubkey(t), nil).Once()
	env.resolver.On("Resolve", mock.Anything, interfaces.Username("gone")).
		Return(interfaces.Pubkey(""), interfaces.ErrUnknownUsername)

	broken, err := env.svc.Create(ctx, sender, "gone", testCiphertext("a"), 1)
	require.NoError(t, err)
	healthy, err := env.svc.Create(ctx, sender, "alice", testCiphertext("b"), 1)
	require.NoError(t, err)

	env.advance(2 * time.Hour)
	result, err := env.svc.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], broken.ID.String())

	// The failed switch stays active for the next sweep.
	reloaded, err := env.svc.Switch(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchActive, reloaded.Status)

	reloaded, err = env.svc.Switch(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SwitchTriggered, reloaded.Status)
}

func TestSweepGarbageCollectsStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 1)
	require.NoError(t, err)

	// Simulate a crash that flipped the status but left the index entry, plus
	// an index entry with no record behind it.
	require.NoError(t, env.store.HSet(ctx, switchKey(sw.ID), map[string]string{
		"status": string(interfaces.SwitchTriggered),
	}))
	require.NoError(t, env.store.SAdd(ctx, activeIndexKey, "00000000-0000-0000-0000-000000000000"))

	result, err := env.svc.Process(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Empty(t, result.Errors)

	active, err := env.store.SMembers(ctx, activeIndexKey)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestReleaseForUntriggeredSwitch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	env.allowUsername(t, "alice")

	sw, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 24)
	require.NoError(t, err)

	_, err = env.svc.Release(ctx, sw.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnvironment(t)
	sender := testPubkey(t)
	other := testPubkey(t)
	env.allowUsername(t, "alice")

	first, err := env.svc.Create(ctx, sender, "alice", testCiphertext("a"), 24)
	require.NoError(t, err)
	env.advance(time.Hour)
	second, err := env.svc.Create(ctx, sender, "alice", testCiphertext("b"), 24)
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, other, "alice", testCiphertext("c"), 24)
	require.NoError(t, err)

	switches, err := env.svc.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, switches, 2)
	assert.Equal(t, second.ID, switches[0].ID)
	assert.Equal(t, first.ID, switches[1].ID)
}
