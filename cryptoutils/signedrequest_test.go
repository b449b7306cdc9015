package cryptoutils

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilkey/vigil-backend/interfaces"
)

func testKeypair(t *testing.T) (string, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), priv
}

func fixedVerifier(skew time.Duration, now time.Time) *Verifier {
	v := NewVerifier(skew)
	v.now = func() time.Time { return now }
	return v
}

func TestChallengeFormat(t *testing.T) {
	assert.Equal(t, "recovery:distribute:1700000000000",
		string(Challenge(ActionRecoveryDistribute, 1700000000000)))
	assert.Equal(t, "recovery:approve:sid-123:1700000000000",
		string(Challenge(ActionRecoveryApprove, 1700000000000, "sid-123")))
	assert.Equal(t, "dms:create:alice:1700000000000",
		string(Challenge(ActionDMSCreate, 1700000000000, "alice")))
}

func TestVerifyRoundTrip(t *testing.T) {
	pubkey, priv := testKeypair(t)
	now := time.Now()
	ts := now.UnixMilli()

	v := fixedVerifier(DefaultSignatureSkew, now)

	sig := SignRequest(priv, ts, ActionRecoveryDistribute)
	assert.NoError(t, v.Verify(pubkey, sig, ts, ActionRecoveryDistribute))

	sig = SignRequest(priv, ts, ActionRecoveryApprove, "session-id")
	assert.NoError(t, v.Verify(pubkey, sig, ts, ActionRecoveryApprove, "session-id"))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	pubkey, _ := testKeypair(t)
	_, otherPriv := testKeypair(t)
	now := time.Now()
	ts := now.UnixMilli()

	v := fixedVerifier(DefaultSignatureSkew, now)
	sig := SignRequest(otherPriv, ts, ActionDMSCheckin)
	assert.ErrorIs(t, v.Verify(pubkey, sig, ts, ActionDMSCheckin), interfaces.ErrInvalidSignature)
}

func TestVerifyRejectsTamperedParams(t *testing.T) {
	pubkey, priv := testKeypair(t)
	now := time.Now()
	ts := now.UnixMilli()

	v := fixedVerifier(DefaultSignatureSkew, now)
	sig := SignRequest(priv, ts, ActionDMSCancel, "switch-a")
	assert.ErrorIs(t, v.Verify(pubkey, sig, ts, ActionDMSCancel, "switch-b"), interfaces.ErrInvalidSignature)
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	pubkey, priv := testKeypair(t)
	now := time.Now()
	ts := now.UnixMilli()
	v := fixedVerifier(DefaultSignatureSkew, now)
	sig := SignRequest(priv, ts, ActionDMSCheckin)

	assert.ErrorIs(t, v.Verify("not-base58-!!", sig, ts, ActionDMSCheckin), interfaces.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(base58.Encode([]byte("short")), sig, ts, ActionDMSCheckin), interfaces.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(pubkey, "%%%not-base64%%%", ts, ActionDMSCheckin), interfaces.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(pubkey, "dG9vc2hvcnQ=", ts, ActionDMSCheckin), interfaces.ErrInvalidSignature)
}

func TestVerifyFreshnessWindow(t *testing.T) {
	pubkey, priv := testKeypair(t)
	now := time.Now()
	v := fixedVerifier(5*time.Minute, now)

	// Stale beyond the window.
	stale := now.Add(-6 * time.Minute).UnixMilli()
	sig := SignRequest(priv, stale, ActionDMSCheckin)
	assert.ErrorIs(t, v.Verify(pubkey, sig, stale, ActionDMSCheckin), interfaces.ErrInvalidSignature)

	// Future-dated beyond the window.
	future := now.Add(6 * time.Minute).UnixMilli()
	sig = SignRequest(priv, future, ActionDMSCheckin)
	assert.ErrorIs(t, v.Verify(pubkey, sig, future, ActionDMSCheckin), interfaces.ErrInvalidSignature)

	// Inside the window on both sides.
	recent := now.Add(-4 * time.Minute).UnixMilli()
	sig = SignRequest(priv, recent, ActionDMSCheckin)
	assert.NoError(t, v.Verify(pubkey, sig, recent, ActionDMSCheckin))

	ahead := now.Add(4 * time.Minute).UnixMilli()
	sig = SignRequest(priv, ahead, ActionDMSCheckin)
	assert.NoError(t, v.Verify(pubkey, sig, ahead, ActionDMSCheckin))
}

func TestSecretEqual(t *testing.T) {
	assert.True(t, SecretEqual("cron-secret", "cron-secret"))
	assert.False(t, SecretEqual("cron-secret", "cron-secreT"))
	assert.False(t, SecretEqual("cron-secret", ""))
}
