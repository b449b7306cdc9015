package clients

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vigilkey/vigil-backend/api/dmshandler"
	"github.com/vigilkey/vigil-backend/api/recoveryhandler"
	"github.com/vigilkey/vigil-backend/blobstore"
	"github.com/vigilkey/vigil-backend/cryptoutils"
	"github.com/vigilkey/vigil-backend/dms"
	"github.com/vigilkey/vigil-backend/identity"
	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/kvstore"
	"github.com/vigilkey/vigil-backend/recovery"
)

const testCronSecret = "cron-secret"

type guardian struct {
	identityPub string
	identity    ed25519.PrivateKey
	boxPub      *[32]byte
	boxPubB58   string
	boxPriv     *[32]byte
}

func newGuardian(t *testing.T) guardian {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	boxPubB58, boxPriv, err := cryptoutils.GenerateBoxKeypair()
	require.NoError(t, err)
	raw, err := base58.Decode(boxPubB58)
	require.NoError(t, err)
	var boxPub [32]byte
	copy(boxPub[:], raw)

	return guardian{
		identityPub: base58.Encode(pub),
		identity:    priv,
		boxPub:      &boxPub,
		boxPubB58:   boxPubB58,
		boxPriv:     boxPriv,
	}
}

func startTestServer(t *testing.T) (*httptest.Server, *kvstore.MemoryStore, *identity.MockResolver) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kvstore.NewMemoryStore()
	resolver := &identity.MockResolver{}
	verifier := cryptoutils.NewVerifier(cryptoutils.DefaultSignatureSkew)

	recoveryService := recovery.NewService(store, logger)
	dmsService := dms.NewService(store, resolver, blobstore.NewMemoryBackend(), logger)

	mux := chi.NewRouter()
	recoveryhandler.NewHandler(recoveryService, verifier, logger).RegisterRoutes(mux)
	dmshandler.NewHandler(dmsService, verifier, testCronSecret, logger).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store, resolver
}

func TestEndToEndRecovery2of3(t *testing.T) {
	server, _, _ := startTestServer(t)
	client := &RecoveryClient{ServerAddr: server.URL}

	ownerPub, ownerPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ownerPubkey := base58.Encode(ownerPub)

	guardians := []guardian{newGuardian(t), newGuardian(t), newGuardian(t)}

	// The secret being protected is the owner's identity key seed.
	secret := ownerPriv.Seed()

	keys := make([]GuardianKey, len(guardians))
	requested := make([]string, len(guardians))
	for i, g := range guardians {
		keys[i] = GuardianKey{IdentityPubkey: g.identityPub, EncryptionPubkey: g.boxPubB58}
		requested[i] = g.identityPub
	}

	distributed, err := client.DistributeSecret(ownerPriv, ownerPubkey, secret, 2, keys)
	require.NoError(t, err)
	assert.Equal(t, 3, distributed.GuardianCount)

	// The owner reappears on a new device and opens a session.
	session, ephemeralPub, ephemeralPriv, err := client.RequestSession(ownerPubkey, requested)
	require.NoError(t, err)
	assert.Equal(t, 2, session.Threshold)

	var ephemeralPubRaw [32]byte
	raw, err := base58.Decode(ephemeralPub)
	require.NoError(t, err)
	copy(ephemeralPubRaw[:], raw)

	// Two guardians approve with re-encrypted shares.
	for _, g := range guardians[:2] {
		approved, err := client.ApproveWithReencryption(
			g.identity, g.identityPub, ownerPubkey,
			session.SessionID, ephemeralPub, g.boxPub, g.boxPriv)
		require.NoError(t, err)
		assert.True(t, approved.Approved)
	}

	status, err := client.SessionStatus(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, 2, status.ApprovalsReceived)

	// The requester opens the released shares and recombines the secret.
	recovered, err := client.RecoverSecret(session.SessionID, &ephemeralPubRaw, ephemeralPriv)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)

	// The recovered seed reconstructs the original identity key.
	assert.Equal(t, ownerPriv, ed25519.NewKeyFromSeed(recovered))
}

func TestEndToEndSwitchTriggerAndDecrypt(t *testing.T) {
	server, store, resolver := startTestServer(t)
	client := &SwitchClient{ServerAddr: server.URL, CronSecret: testCronSecret}

	senderPub, senderPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	senderPubkey := base58.Encode(senderPub)

	// The recipient's encryption keypair, registered under @alice.
	recipientBoxPub, recipientBoxPriv, err := cryptoutils.GenerateBoxKeypair()
	require.NoError(t, err)
	resolver.On("Resolve", mock.Anything, interfaces.Username("alice")).
		Return(interfaces.Pubkey(recipientBoxPub), nil)

	created, err := client.Create(senderPriv, senderPubkey, "alice", recipientBoxPub,
		[]byte("if you read this, check the safe"), 1)
	require.NoError(t, err)

	// A check-in keeps the switch alive.
	checkin, err := client.CheckIn(senderPriv, senderPubkey)
	require.NoError(t, err)
	assert.Equal(t, 1, checkin.SwitchCount)

	// Sweep with nothing overdue.
	result, err := client.Process()
	require.NoError(t, err)
	assert.Zero(t, result.Processed)

	// Backdate the deadline and sweep again.
	overdue := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	require.NoError(t, store.HSet(context.Background(), "dms:switch:"+created.SwitchID,
		map[string]string{"nextDeadline": overdue}))

	result, err = client.Process()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	// The recipient pulls the release record and decrypts the message.
	record, err := client.FetchRelease(created.SwitchID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ReleaseRecordType, record.Type)

	var pubRaw [32]byte
	raw, err := base58.Decode(recipientBoxPub)
	require.NoError(t, err)
	copy(pubRaw[:], raw)

	message, err := cryptoutils.OpenSealed(record.EncryptedMessage.String(), &pubRaw, recipientBoxPriv)
	require.NoError(t, err)
	assert.Equal(t, []byte("if you read this, check the safe"), message)
}

func TestClientCancelRoundTrip(t *testing.T) {
	server, _, resolver := startTestServer(t)
	client := &SwitchClient{ServerAddr: server.URL}

	senderPub, senderPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	senderPubkey := base58.Encode(senderPub)

	recipientBoxPub, _, err := cryptoutils.GenerateBoxKeypair()
	require.NoError(t, err)
	resolver.On("Resolve", mock.Anything, interfaces.Username("bob")).
		Return(interfaces.Pubkey(recipientBoxPub), nil)

	created, err := client.Create(senderPriv, senderPubkey, "bob", recipientBoxPub, []byte("note"), 24)
	require.NoError(t, err)

	require.NoError(t, client.Cancel(senderPriv, senderPubkey, created.SwitchID))

	listing, err := client.List(senderPubkey)
	require.NoError(t, err)
	require.Len(t, listing.Switches, 1)
	assert.Equal(t, string(interfaces.SwitchCancelled), listing.Switches[0].Status)
}
