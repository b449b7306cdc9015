package interfaces

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Pubkey is a base58-encoded 32-byte Ed25519 public key.
type Pubkey string

// NewPubkey validates and normalizes a base58-encoded Ed25519 public key.
func NewPubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: pubkey is not valid base58: %v", ErrValidation, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: pubkey must decode to %d bytes, got %d", ErrValidation, ed25519.PublicKeySize, len(raw))
	}
	return Pubkey(s), nil
}

// Bytes decodes the key into its raw Ed25519 form.
func (p Pubkey) Bytes() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(p))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 pubkey: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid pubkey length: %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// String returns the base58 representation.
func (p Pubkey) String() string {
	return string(p)
}

// Ciphertext is a base64-encoded sealed-box output. The server treats the
// contents as opaque bytes; only the encoding is validated.
type Ciphertext string

// NewCiphertext validates a base64-encoded ciphertext. Empty ciphertexts are
// rejected: an approval carrying no re-encrypted share is useless to the
// requester.
func NewCiphertext(s string) (Ciphertext, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty ciphertext", ErrValidation)
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: ciphertext is not valid base64: %v", ErrValidation, err)
	}
	return Ciphertext(s), nil
}

// String returns the base64 representation.
func (c Ciphertext) String() string {
	return string(c)
}

// Username identifies a message recipient in the external identity registry.
type Username string

// MaxUsernameLength matches the registry contract's account size limit.
const MaxUsernameLength = 64

// NewUsername normalizes a recipient username. A leading "@" is accepted and
// stripped so clients may pass handles verbatim.
func NewUsername(s string) (Username, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	if s == "" {
		return "", fmt.Errorf("%w: empty username", ErrValidation)
	}
	if len(s) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username exceeds %d characters", ErrValidation, MaxUsernameLength)
	}
	return Username(s), nil
}

// String returns the normalized username.
func (u Username) String() string {
	return string(u)
}

// SessionID identifies a recovery session. Session ids are unguessable UUIDs;
// knowledge of the id is the only guard on the unauthenticated session
// endpoints.
type SessionID string

// NewSessionID validates a session id.
func NewSessionID(s string) (SessionID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: invalid session id: %v", ErrValidation, err)
	}
	return SessionID(s), nil
}

// FreshSessionID generates a new random session id.
func FreshSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// String returns the UUID string.
func (s SessionID) String() string {
	return string(s)
}

// SwitchID identifies a dead-man's switch.
type SwitchID string

// NewSwitchID validates a switch id.
func NewSwitchID(s string) (SwitchID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: invalid switch id: %v", ErrValidation, err)
	}
	return SwitchID(s), nil
}

// FreshSwitchID generates a new random switch id.
func FreshSwitchID() SwitchID {
	return SwitchID(uuid.NewString())
}

// String returns the UUID string.
func (s SwitchID) String() string {
	return string(s)
}

// SessionStatus is the lifecycle state of a recovery session.
type SessionStatus string

const (
	// SessionPending means fewer than threshold guardians have approved.
	SessionPending SessionStatus = "pending"

	// SessionReady means approvals reached the threshold and the re-encrypted
	// shares may be released.
	SessionReady SessionStatus = "ready"
)

// SwitchStatus is the lifecycle state of a dead-man's switch.
type SwitchStatus string

const (
	// SwitchActive means the switch is armed and tracked by the sweep.
	SwitchActive SwitchStatus = "active"

	// SwitchTriggered means the deadline passed and the message was released.
	SwitchTriggered SwitchStatus = "triggered"

	// SwitchCancelled means the owner cancelled the switch before it fired.
	SwitchCancelled SwitchStatus = "cancelled"
)

// PayloadHandle locates a switch's encrypted payload: either an identifier in
// the external blob store, or "local:<id>" for the fallback copy held in the
// key-value store.
type PayloadHandle string

// LocalHandlePrefix marks payloads stored in the local fallback.
const LocalHandlePrefix = "local:"

// IsLocal reports whether the payload lives in the local fallback store.
func (h PayloadHandle) IsLocal() bool {
	return strings.HasPrefix(string(h), LocalHandlePrefix)
}

// LocalID returns the fallback store id for a local handle.
func (h PayloadHandle) LocalID() string {
	return strings.TrimPrefix(string(h), LocalHandlePrefix)
}

// String returns the raw handle.
func (h PayloadHandle) String() string {
	return string(h)
}
