package cryptoutils

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// Canonical action identifiers. These must match bit-exact between client and
// server; the signed challenge is derived from them.
const (
	ActionRecoveryDistribute = "recovery:distribute"
	ActionRecoveryRevoke     = "recovery:revoke"
	ActionRecoveryApprove    = "recovery:approve"
	ActionDMSCreate          = "dms:create"
	ActionDMSCheckin         = "dms:checkin"
	ActionDMSCancel          = "dms:cancel"
)

// DefaultSignatureSkew is the freshness window applied when none is
// configured.
const DefaultSignatureSkew = 5 * time.Minute

// Challenge builds the canonical challenge string for a signed request:
// the action, any operation-specific parameters, and the millisecond
// timestamp, joined by ":". The UTF-8 bytes of this string are what the
// client signs.
func Challenge(action string, timestampMs int64, params ...string) []byte {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, action)
	parts = append(parts, params...)
	parts = append(parts, strconv.FormatInt(timestampMs, 10))
	return []byte(strings.Join(parts, ":"))
}

// Verifier checks detached Ed25519 signatures over canonical challenges.
// It is the only authentication primitive in the system; the services share
// no session cookies or bearer tokens.
type Verifier struct {
	skew time.Duration

	// now is swapped out by tests.
	now func() time.Time
}

// NewVerifier creates a verifier with the given freshness window. A
// non-positive skew falls back to DefaultSignatureSkew.
func NewVerifier(skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = DefaultSignatureSkew
	}
	return &Verifier{skew: skew, now: time.Now}
}

// Verify checks a signed request tuple against the reconstructed challenge.
// Every failure mode (malformed base58 pubkey, wrong key length, malformed
// base64 signature, signature mismatch, timestamp outside the skew window)
// returns the same interfaces.ErrInvalidSignature so callers cannot probe
// which sub-check failed.
func (v *Verifier) Verify(pubkey, signatureB64 string, timestampMs int64, action string, params ...string) error {
	requestTime := time.UnixMilli(timestampMs)
	drift := v.now().Sub(requestTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.skew {
		return interfaces.ErrInvalidSignature
	}

	keyBytes, err := base58.Decode(pubkey)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		return interfaces.ErrInvalidSignature
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return interfaces.ErrInvalidSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(keyBytes), Challenge(action, timestampMs, params...), signature) {
		return interfaces.ErrInvalidSignature
	}
	return nil
}

// SignRequest produces the detached base64 signature for a request. This is
// the client-side counterpart of Verify.
func SignRequest(priv ed25519.PrivateKey, timestampMs int64, action string, params ...string) string {
	signature := ed25519.Sign(priv, Challenge(action, timestampMs, params...))
	return base64.StdEncoding.EncodeToString(signature)
}

// SecretEqual compares two shared secrets in constant time.
func SecretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
