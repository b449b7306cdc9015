package interfaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecoveryConfigRejectsMissingFields(t *testing.T) {
	config := &RecoveryConfig{
		Threshold: 2,
		Guardians: []Pubkey{"g1", "g2", "g3"},
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	fields := config.Fields()

	parsed, err := ParseRecoveryConfig(fields)
	require.NoError(t, err)
	assert.Equal(t, config.Threshold, parsed.Threshold)
	assert.Equal(t, config.Guardians, parsed.Guardians)
	assert.True(t, parsed.HasGuardian("g2"))
	assert.False(t, parsed.HasGuardian("g4"))

	for _, name := range []string{"threshold", "guardians", "createdAt"} {
		broken := config.Fields()
		delete(broken, name)
		_, err := ParseRecoveryConfig(broken)
		assert.Error(t, err, "missing %s should be rejected", name)
	}

	// Numeric coercion failures surface as errors, not zero values.
	broken := config.Fields()
	broken["threshold"] = "two"
	_, err = ParseRecoveryConfig(broken)
	assert.Error(t, err)
}

func TestParseRecoverySession(t *testing.T) {
	session := &RecoverySession{
		ID:                 "c1f4e1a8-0000-4000-8000-000000000001",
		OwnerPubkey:        "owner",
		EphemeralPubkey:    "ephemeral",
		RequestedGuardians: []Pubkey{"g1", "g2"},
		Threshold:          2,
		Approvals:          1,
		Status:             SessionPending,
		CreatedAt:          time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	parsed, err := ParseRecoverySession(session.ID, session.Fields())
	require.NoError(t, err)
	assert.Equal(t, session, parsed)
	assert.True(t, parsed.IsRequested("g1"))
	assert.False(t, parsed.IsRequested("g3"))
}

func TestParseDMSSwitchTriggeredAtOptional(t *testing.T) {
	sw := &DMSSwitch{
		ID:                "c1f4e1a8-0000-4000-8000-000000000002",
		SenderPubkey:      "sender",
		RecipientUsername: "alice",
		PayloadHandle:     "local:abc",
		IntervalHours:     24,
		NextDeadline:      time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:            SwitchActive,
		CreatedAt:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	fields := sw.Fields()
	_, hasTriggered := fields["triggeredAt"]
	assert.False(t, hasTriggered)

	parsed, err := ParseDMSSwitch(sw.ID, fields)
	require.NoError(t, err)
	assert.True(t, parsed.TriggeredAt.IsZero())
	assert.True(t, parsed.PayloadHandle.IsLocal())
	assert.Equal(t, "abc", parsed.PayloadHandle.LocalID())
	assert.Equal(t, 24*time.Hour, parsed.Interval())

	sw.Status = SwitchTriggered
	sw.TriggeredAt = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	parsed, err = ParseDMSSwitch(sw.ID, sw.Fields())
	require.NoError(t, err)
	assert.Equal(t, sw.TriggeredAt, parsed.TriggeredAt)
}

func TestPubkeyValidation(t *testing.T) {
	// 32 bytes of 0x01 in base58.
	valid := "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"
	key, err := NewPubkey(valid)
	require.NoError(t, err)
	raw, err := key.Bytes()
	require.NoError(t, err)
	assert.Len(t, []byte(raw), 32)

	_, err = NewPubkey("not-base58-!!")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewPubkey("abc")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCiphertextValidation(t *testing.T) {
	_, err := NewCiphertext("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCiphertext("%%%")
	assert.ErrorIs(t, err, ErrValidation)

	ct, err := NewCiphertext("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", ct.String())
}

func TestUsernameNormalization(t *testing.T) {
	u, err := NewUsername("@alice")
	require.NoError(t, err)
	assert.Equal(t, Username("alice"), u)

	_, err = NewUsername("  ")
	assert.ErrorIs(t, err, ErrValidation)
}
