package interfaces

import (
	"context"
	"time"
)

// IdentityResolver resolves a username registered in the external identity
// registry to the recipient's public encryption key. Returns
// ErrUnknownUsername when the registry has no entry, ErrBackendUnavailable
// when the registry cannot be reached.
type IdentityResolver interface {
	Resolve(ctx context.Context, username Username) (Pubkey, error)
}

// BlobStore stores encrypted message payloads in an external, ideally
// permanent, backend. Handles are backend-specific opaque identifiers.
type BlobStore interface {
	// Upload stores a ciphertext and returns its handle.
	Upload(ctx context.Context, data []byte) (string, error)

	// Fetch retrieves a ciphertext by handle. Returns ErrNotFound for unknown
	// handles.
	Fetch(ctx context.Context, handle string) ([]byte, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string
}

// GuardianInput is one guardian entry submitted with distribute: the
// guardian's identity key plus the share ciphertext addressed to it.
type GuardianInput struct {
	Pubkey         Pubkey
	EncryptedShare Ciphertext
	ShareIndex     int
}

// RecoveryOrchestrator is the k-of-n social recovery service contract.
type RecoveryOrchestrator interface {
	// Distribute replaces the owner's guardian set: any previous config and
	// shares are revoked, then the new config and one share per guardian are
	// written.
	Distribute(ctx context.Context, owner Pubkey, threshold int, guardians []GuardianInput) error

	// Config returns the owner's public guardian configuration, or
	// ErrNotFound when none is set.
	Config(ctx context.Context, owner Pubkey) (*RecoveryConfig, error)

	// Guardianships lists the owners for which the given pubkey holds a
	// share.
	Guardianships(ctx context.Context, guardian Pubkey) ([]Pubkey, error)

	// Share returns the stored share for a (guardian, owner) pair. The
	// ciphertext is sealed to the guardian's encryption key, so exposing it
	// reveals nothing to anyone else.
	Share(ctx context.Context, guardian, owner Pubkey) (*GuardianShare, error)

	// RequestSession opens a recovery session for the owner. The requested
	// guardians must be a non-empty subset of the configured guardian list.
	RequestSession(ctx context.Context, owner Pubkey, ephemeralPubkey string, requested []Pubkey) (*RecoverySession, error)

	// Session returns a live session, or ErrNotFound once it has expired.
	Session(ctx context.Context, id SessionID) (*RecoverySession, error)

	// Approve records one guardian's approval and re-encrypted share,
	// transitioning the session to ready once approvals reach the threshold.
	// Returns ErrAlreadyApproved on a repeat approval and
	// ErrGuardianNotAuthorized for guardians outside the requested set.
	Approve(ctx context.Context, id SessionID, guardian Pubkey, share Ciphertext) (*RecoverySession, error)

	// ReleasedShares returns all re-encrypted shares for a ready session.
	// Returns ErrNotReady while the session is still pending.
	ReleasedShares(ctx context.Context, id SessionID) ([]SessionShare, error)

	// Revoke deletes the owner's config and every guardian share. Revoking a
	// non-existent config is a no-op success.
	Revoke(ctx context.Context, owner Pubkey) error
}

// SweepResult summarizes one run of the periodic sweep.
type SweepResult struct {
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors,omitempty"`
}

// SwitchScheduler is the dead-man's switch service contract.
type SwitchScheduler interface {
	// Create arms a new switch addressed to a registered username.
	Create(ctx context.Context, sender Pubkey, recipient Username, message Ciphertext, intervalHours int) (*DMSSwitch, error)

	// CheckIn proves liveness: every active switch owned by the sender gets
	// its deadline rewritten to now plus its own interval. Returns the number
	// of switches bumped and the latest of the new deadlines.
	CheckIn(ctx context.Context, sender Pubkey) (int, time.Time, error)

	// Cancel disarms a switch. Returns ErrNotFound when the switch does not
	// exist or is owned by someone else; the two cases are indistinguishable.
	Cancel(ctx context.Context, sender Pubkey, id SwitchID) error

	// List returns metadata for every switch the owner has created,
	// including triggered and cancelled history. Ciphertexts are never
	// included.
	List(ctx context.Context, owner Pubkey) ([]*DMSSwitch, error)

	// Process runs one sweep over the active index, releasing every switch
	// whose deadline has passed. Per-switch failures are collected, never
	// fatal.
	Process(ctx context.Context) (*SweepResult, error)

	// Release returns the released-message record for a triggered switch, or
	// ErrNotFound if the switch never fired or the record has expired.
	Release(ctx context.Context, id SwitchID) (*ReleaseRecord, error)
}
