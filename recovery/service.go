package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/metrics"
)

// Guardian set limits enforced on distribute.
const (
	MinThreshold = 2
	MaxGuardians = 10
)

// Service implements interfaces.RecoveryOrchestrator on top of the shared
// key-value store.
type Service struct {
	store interfaces.KVStore
	log   *slog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// NewService creates the orchestrator with its store and logger dependencies.
func NewService(store interfaces.KVStore, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Distribute replaces the owner's guardian configuration. Semantics are
// idempotent replacement: any existing config and shares are revoked first,
// then the new config and one share per guardian are written. A crash
// mid-write leaves a partial share set; the config stays authoritative and
// the client retries distribute, which re-revokes.
func (s *Service) Distribute(ctx context.Context, owner interfaces.Pubkey, threshold int, guardians []interfaces.GuardianInput) error {
	if threshold < MinThreshold {
		return fmt.Errorf("%w: threshold must be at least %d", interfaces.ErrValidation, MinThreshold)
	}
	if len(guardians) < threshold {
		return fmt.Errorf("%w: need at least %d guardians for threshold %d", interfaces.ErrValidation, threshold, threshold)
	}
	if len(guardians) > MaxGuardians {
		return fmt.Errorf("%w: at most %d guardians are supported", interfaces.ErrValidation, MaxGuardians)
	}

	seenIndex := make(map[int]bool, len(guardians))
	seenPubkey := make(map[interfaces.Pubkey]bool, len(guardians))
	for _, g := range guardians {
		if g.ShareIndex < 0 || g.ShareIndex >= len(guardians) {
			return fmt.Errorf("%w: share index %d out of range 0..%d", interfaces.ErrValidation, g.ShareIndex, len(guardians)-1)
		}
		if seenIndex[g.ShareIndex] {
			return fmt.Errorf("%w: duplicate share index %d", interfaces.ErrValidation, g.ShareIndex)
		}
		if seenPubkey[g.Pubkey] {
			return fmt.Errorf("%w: duplicate guardian %s", interfaces.ErrValidation, g.Pubkey)
		}
		seenIndex[g.ShareIndex] = true
		seenPubkey[g.Pubkey] = true
	}

	if err := s.Revoke(ctx, owner); err != nil {
		return err
	}

	createdAt := s.now()
	config := interfaces.RecoveryConfig{
		Threshold: threshold,
		CreatedAt: createdAt,
	}
	for _, g := range guardians {
		config.Guardians = append(config.Guardians, g.Pubkey)
	}
	if err := s.store.HSet(ctx, configKey(owner), config.Fields()); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	for _, g := range guardians {
		share := interfaces.GuardianShare{
			EncryptedShare: g.EncryptedShare,
			ShareIndex:     g.ShareIndex,
			CreatedAt:      createdAt,
		}
		if err := s.store.HSet(ctx, shareKey(g.Pubkey, owner), share.Fields()); err != nil {
			return fmt.Errorf("writing share for guardian %s: %w", g.Pubkey, err)
		}
	}

	metrics.RecoveryDistributions.Inc()
	s.log.Info("Distributed recovery shares",
		"owner", owner.String(),
		"guardians", len(guardians),
		"threshold", threshold)
	return nil
}

// Config returns the owner's guardian configuration.
func (s *Service) Config(ctx context.Context, owner interfaces.Pubkey) (*interfaces.RecoveryConfig, error) {
	fields, err := s.store.HGetAll(ctx, configKey(owner))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrNotFound
	}
	config, err := interfaces.ParseRecoveryConfig(fields)
	if err != nil {
		return nil, fmt.Errorf("decoding config for %s: %w", owner, err)
	}
	return config, nil
}

// Guardianships lists the owners this pubkey guards, derived by scanning the
// share keyspace.
func (s *Service) Guardianships(ctx context.Context, guardian interfaces.Pubkey) ([]interfaces.Pubkey, error) {
	keys, err := s.store.Scan(ctx, shareScanPattern(guardian))
	if err != nil {
		return nil, fmt.Errorf("scanning shares: %w", err)
	}

	prefix := "recovery:share:" + guardian.String() + ":"
	owners := make([]interfaces.Pubkey, 0, len(keys))
	for _, key := range keys {
		owners = append(owners, interfaces.Pubkey(strings.TrimPrefix(key, prefix)))
	}
	return owners, nil
}

// Share returns the stored share for a (guardian, owner) pair.
func (s *Service) Share(ctx context.Context, guardian, owner interfaces.Pubkey) (*interfaces.GuardianShare, error) {
	fields, err := s.store.HGetAll(ctx, shareKey(guardian, owner))
	if err != nil {
		return nil, fmt.Errorf("loading share: %w", err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrNotFound
	}
	share, err := interfaces.ParseGuardianShare(fields)
	if err != nil {
		return nil, fmt.Errorf("decoding share for (%s, %s): %w", guardian, owner, err)
	}
	return share, nil
}

// RequestSession opens a recovery session. Unauthenticated by design: the
// requester has lost all signing keys. The config is re-read here, so a
// session can never be created once revoke has deleted it.
func (s *Service) RequestSession(ctx context.Context, owner interfaces.Pubkey, ephemeralPubkey string, requested []interfaces.Pubkey) (*interfaces.RecoverySession, error) {
	if ephemeralPubkey == "" {
		return nil, fmt.Errorf("%w: missing ephemeral pubkey", interfaces.ErrValidation)
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no guardians requested", interfaces.ErrValidation)
	}

	config, err := s.Config(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, g := range requested {
		if !config.HasGuardian(g) {
			return nil, fmt.Errorf("%w: %s is not a configured guardian", interfaces.ErrValidation, g)
		}
	}

	session := &interfaces.RecoverySession{
		ID:                 interfaces.FreshSessionID(),
		OwnerPubkey:        owner,
		EphemeralPubkey:    ephemeralPubkey,
		RequestedGuardians: requested,
		Threshold:          config.Threshold,
		Approvals:          0,
		Status:             interfaces.SessionPending,
		CreatedAt:          s.now(),
	}
	if err := s.store.HSet(ctx, sessionKey(session.ID), session.Fields()); err != nil {
		return nil, fmt.Errorf("writing session: %w", err)
	}
	if err := s.store.Expire(ctx, sessionKey(session.ID), interfaces.SessionTTL); err != nil {
		return nil, fmt.Errorf("setting session TTL: %w", err)
	}

	metrics.RecoverySessionsCreated.Inc()
	s.log.Info("Opened recovery session",
		"sessionId", session.ID.String(),
		"owner", owner.String(),
		"requestedGuardians", len(requested),
		"threshold", config.Threshold)
	return session, nil
}

// Session loads a live session. Expired sessions are gone from the store and
// surface as ErrNotFound.
func (s *Service) Session(ctx context.Context, id interfaces.SessionID) (*interfaces.RecoverySession, error) {
	fields, err := s.store.HGetAll(ctx, sessionKey(id))
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrNotFound
	}
	session, err := interfaces.ParseRecoverySession(id, fields)
	if err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return session, nil
}

// Approve records one guardian's approval. The share write is the atomicity
// arbiter: set-if-not-exists on the (session, guardian) key decides races
// between concurrent approvals from the same guardian, and the approval
// counter is bumped only by the winner. The share is written before the
// counter, so a crash between the two under-counts. The counter gates
// ready, making under-release the worst case.
//
// Approvals are accepted while the session record exists, including after it
// reaches ready: a late guardian past the threshold still contributes its
// share, and all shares stay retrievable until the TTL reaps them.
func (s *Service) Approve(ctx context.Context, id interfaces.SessionID, guardian interfaces.Pubkey, share interfaces.Ciphertext) (*interfaces.RecoverySession, error) {
	session, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsRequested(guardian) {
		return nil, interfaces.ErrGuardianNotAuthorized
	}

	remaining := interfaces.SessionTTL - s.now().Sub(session.CreatedAt)
	if remaining <= 0 {
		return nil, interfaces.ErrNotFound
	}

	won, err := s.store.SetNX(ctx, sessionShareKey(id, guardian), share.String(), remaining)
	if err != nil {
		return nil, fmt.Errorf("writing session share: %w", err)
	}
	if !won {
		return nil, interfaces.ErrAlreadyApproved
	}

	approvals, err := s.store.HIncrBy(ctx, sessionKey(id), "approvals", 1)
	if err != nil {
		return nil, fmt.Errorf("counting approval: %w", err)
	}
	session.Approvals = int(approvals)

	if session.Approvals >= session.Threshold && session.Status != interfaces.SessionReady {
		if err := s.store.HSet(ctx, sessionKey(id), map[string]string{"status": string(interfaces.SessionReady)}); err != nil {
			return nil, fmt.Errorf("marking session ready: %w", err)
		}
		session.Status = interfaces.SessionReady
		s.log.Info("Recovery session ready",
			"sessionId", id.String(),
			"approvals", session.Approvals,
			"threshold", session.Threshold)
	}

	metrics.RecoveryApprovals.Inc()
	return session, nil
}

// ReleasedShares returns the re-encrypted shares of a ready session. The
// endpoint serving this is unauthenticated: each share is sealed to the
// session's one-time ephemeral key, so possession of the ciphertexts is
// useless to an eavesdropper.
func (s *Service) ReleasedShares(ctx context.Context, id interfaces.SessionID) ([]interfaces.SessionShare, error) {
	session, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != interfaces.SessionReady {
		return nil, interfaces.ErrNotReady
	}

	shares := make([]interfaces.SessionShare, 0, session.Approvals)
	for _, guardian := range session.RequestedGuardians {
		value, err := s.store.Get(ctx, sessionShareKey(id, guardian))
		if errors.Is(err, interfaces.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading share for %s: %w", guardian, err)
		}
		shares = append(shares, interfaces.SessionShare{
			GuardianPubkey:   guardian,
			ReEncryptedShare: interfaces.Ciphertext(value),
		})
	}
	return shares, nil
}

// Revoke deletes the owner's config and all guardian shares. Idempotent:
// revoking with no config present is a no-op success. Live sessions are not
// force-expired; they simply age out on their own TTL.
func (s *Service) Revoke(ctx context.Context, owner interfaces.Pubkey) error {
	config, err := s.Config(ctx, owner)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, guardian := range config.Guardians {
		if err := s.store.Del(ctx, shareKey(guardian, owner)); err != nil {
			return fmt.Errorf("deleting share for %s: %w", guardian, err)
		}
	}
	if err := s.store.Del(ctx, configKey(owner)); err != nil {
		return fmt.Errorf("deleting config: %w", err)
	}

	s.log.Info("Revoked recovery config", "owner", owner.String())
	return nil
}
