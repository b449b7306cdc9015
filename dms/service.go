package dms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/metrics"
)

// Check-in interval bounds, in hours. The upper bound is one year.
const (
	MinIntervalHours = 1
	MaxIntervalHours = 8760
)

// Service implements interfaces.SwitchScheduler on top of the shared
// key-value store, the identity registry, and the external blob store.
type Service struct {
	store    interfaces.KVStore
	resolver interfaces.IdentityResolver
	blobs    interfaces.BlobStore
	log      *slog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// NewService creates the scheduler. blobs may be nil, in which case every
// payload takes the local fallback path.
func NewService(store interfaces.KVStore, resolver interfaces.IdentityResolver, blobs interfaces.BlobStore, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		blobs:    blobs,
		log:      log,
		now:      time.Now,
	}
}

// Create arms a new switch. The recipient username must resolve in the
// identity registry. The ciphertext goes to the external blob store when it
// is reachable; otherwise it is kept locally under a year-long TTL and the
// caller is not told the difference.
func (s *Service) Create(ctx context.Context, sender interfaces.Pubkey, recipient interfaces.Username, message interfaces.Ciphertext, intervalHours int) (*interfaces.DMSSwitch, error) {
	if intervalHours < MinIntervalHours || intervalHours > MaxIntervalHours {
		return nil, fmt.Errorf("%w: check-in interval must be between %d and %d hours", interfaces.ErrValidation, MinIntervalHours, MaxIntervalHours)
	}

	if _, err := s.resolver.Resolve(ctx, recipient); err != nil {
		if errors.Is(err, interfaces.ErrUnknownUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("resolving recipient %s: %w", recipient, err)
	}

	handle, err := s.storePayload(ctx, message)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sw := &interfaces.DMSSwitch{
		ID:                interfaces.FreshSwitchID(),
		SenderPubkey:      sender,
		RecipientUsername: recipient,
		PayloadHandle:     handle,
		IntervalHours:     intervalHours,
		NextDeadline:      now.Add(time.Duration(intervalHours) * time.Hour),
		Status:            interfaces.SwitchActive,
		CreatedAt:         now,
	}

	if err := s.store.HSet(ctx, switchKey(sw.ID), sw.Fields()); err != nil {
		return nil, fmt.Errorf("writing switch: %w", err)
	}
	if err := s.store.SAdd(ctx, userIndexKey(sender), sw.ID.String()); err != nil {
		return nil, fmt.Errorf("indexing switch for user: %w", err)
	}
	if err := s.store.SAdd(ctx, activeIndexKey, sw.ID.String()); err != nil {
		return nil, fmt.Errorf("indexing switch as active: %w", err)
	}

	metrics.SwitchesCreated.Inc()
	s.log.Info("Created dead-man's switch",
		"switchId", sw.ID.String(),
		"sender", sender.String(),
		"recipient", recipient.String(),
		"intervalHours", intervalHours,
		"payloadLocal", handle.IsLocal())
	return sw, nil
}

// storePayload uploads the ciphertext to the external blob store, falling
// back to a local copy when the backend is down. The stored bytes are the
// base64 text, so fetch returns exactly what the sender submitted.
func (s *Service) storePayload(ctx context.Context, message interfaces.Ciphertext) (interfaces.PayloadHandle, error) {
	if s.blobs != nil {
		handle, err := s.blobs.Upload(ctx, []byte(message.String()))
		if err == nil {
			return interfaces.PayloadHandle(handle), nil
		}
		s.log.Warn("Blob store upload failed, using local fallback", "backend", s.blobs.Name(), "err", err)
	}

	localID := uuid.NewString()
	if err := s.store.Set(ctx, fallbackPayloadKey(localID), message.String(), interfaces.FallbackPayloadTTL); err != nil {
		return "", fmt.Errorf("storing fallback payload: %w", err)
	}
	return interfaces.PayloadHandle(interfaces.LocalHandlePrefix + localID), nil
}

// fetchPayload retrieves the ciphertext for a switch from wherever create put
// it.
func (s *Service) fetchPayload(ctx context.Context, handle interfaces.PayloadHandle) (interfaces.Ciphertext, error) {
	if handle.IsLocal() {
		value, err := s.store.Get(ctx, fallbackPayloadKey(handle.LocalID()))
		if err != nil {
			return "", fmt.Errorf("loading fallback payload: %w", err)
		}
		return interfaces.Ciphertext(value), nil
	}

	if s.blobs == nil {
		return "", fmt.Errorf("%w: no blob store configured for handle %s", interfaces.ErrBackendUnavailable, handle)
	}
	data, err := s.blobs.Fetch(ctx, handle.String())
	if err != nil {
		return "", fmt.Errorf("fetching payload %s: %w", handle, err)
	}
	return interfaces.Ciphertext(data), nil
}

// Switch loads one switch record.
func (s *Service) Switch(ctx context.Context, id interfaces.SwitchID) (*interfaces.DMSSwitch, error) {
	fields, err := s.store.HGetAll(ctx, switchKey(id))
	if err != nil {
		return nil, fmt.Errorf("loading switch: %w", err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrNotFound
	}
	sw, err := interfaces.ParseDMSSwitch(id, fields)
	if err != nil {
		return nil, fmt.Errorf("decoding switch %s: %w", id, err)
	}
	return sw, nil
}

// CheckIn rewrites the deadline of every active switch the sender owns to
// now plus that switch's own interval. A sender with no active switches
// still checks in successfully with a zero count.
func (s *Service) CheckIn(ctx context.Context, sender interfaces.Pubkey) (int, time.Time, error) {
	ids, err := s.store.SMembers(ctx, userIndexKey(sender))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("listing switches: %w", err)
	}

	now := s.now()
	count := 0
	var latest time.Time
	for _, raw := range ids {
		sw, err := s.Switch(ctx, interfaces.SwitchID(raw))
		if errors.Is(err, interfaces.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, time.Time{}, err
		}
		if sw.Status != interfaces.SwitchActive {
			continue
		}

		deadline := now.Add(sw.Interval())
		if err := s.store.HSet(ctx, switchKey(sw.ID), map[string]string{
			"nextDeadline": deadline.UTC().Format(time.RFC3339),
		}); err != nil {
			return 0, time.Time{}, fmt.Errorf("bumping deadline for %s: %w", sw.ID, err)
		}
		count++
		if deadline.After(latest) {
			latest = deadline
		}
	}

	metrics.CheckIns.Inc()
	s.log.Debug("Processed check-in", "sender", sender.String(), "switchCount", count)
	return count, latest, nil
}

// Cancel disarms a switch owned by the sender. A missing switch and a switch
// owned by someone else return the same ErrNotFound, so the endpoint is not
// an existence oracle.
func (s *Service) Cancel(ctx context.Context, sender interfaces.Pubkey, id interfaces.SwitchID) error {
	sw, err := s.Switch(ctx, id)
	if err != nil {
		return err
	}
	if sw.SenderPubkey != sender {
		return interfaces.ErrNotFound
	}

	if err := s.store.HSet(ctx, switchKey(id), map[string]string{
		"status": string(interfaces.SwitchCancelled),
	}); err != nil {
		return fmt.Errorf("cancelling switch: %w", err)
	}
	if err := s.store.SRem(ctx, userIndexKey(sender), id.String()); err != nil {
		return fmt.Errorf("removing switch from user index: %w", err)
	}
	if err := s.store.SRem(ctx, activeIndexKey, id.String()); err != nil {
		return fmt.Errorf("removing switch from active index: %w", err)
	}

	s.log.Info("Cancelled switch", "switchId", id.String(), "sender", sender.String())
	return nil
}

// List returns metadata for every switch the owner has created, newest
// first. The listing is derived from the switch records themselves rather
// than the user index, so cancelled and triggered switches stay visible as
// history even after the indices drop them. Ciphertexts are never part of a
// listing.
func (s *Service) List(ctx context.Context, owner interfaces.Pubkey) ([]*interfaces.DMSSwitch, error) {
	keys, err := s.store.Scan(ctx, switchScanPattern)
	if err != nil {
		return nil, fmt.Errorf("listing switches: %w", err)
	}

	switches := make([]*interfaces.DMSSwitch, 0, len(keys))
	for _, key := range keys {
		sw, err := s.Switch(ctx, interfaces.SwitchID(key[len(switchKeyPrefix):]))
		if errors.Is(err, interfaces.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sw.SenderPubkey != owner {
			continue
		}
		switches = append(switches, sw)
	}

	sort.Slice(switches, func(i, j int) bool {
		if switches[i].CreatedAt.Equal(switches[j].CreatedAt) {
			return switches[i].ID < switches[j].ID
		}
		return switches[i].CreatedAt.After(switches[j].CreatedAt)
	})
	return switches, nil
}

// Release returns the released-message record for a triggered switch.
func (s *Service) Release(ctx context.Context, id interfaces.SwitchID) (*interfaces.ReleaseRecord, error) {
	value, err := s.store.Get(ctx, releaseKey(id))
	if err != nil {
		return nil, err
	}

	var record interfaces.ReleaseRecord
	if err := unmarshalRelease(value, &record); err != nil {
		return nil, fmt.Errorf("decoding release record %s: %w", id, err)
	}
	return &record, nil
}
