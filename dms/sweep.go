package dms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/metrics"
)

// Process runs one sweep over the active index. For every overdue switch it
// resolves the recipient, fetches the ciphertext, writes the released-message
// record under a 90-day TTL, and marks the switch triggered. Entries whose
// record is missing or no longer active are garbage-collected from the index,
// so the index self-heals across sweeps; a record that fails to load is
// reported as an error and its entry stays. Per-switch failures are recorded
// and never abort the batch.
func (s *Service) Process(ctx context.Context) (*interfaces.SweepResult, error) {
	timer := metrics.NewSweepTimer()
	defer timer.ObserveDuration()

	ids, err := s.store.SMembers(ctx, activeIndexKey)
	if err != nil {
		return nil, fmt.Errorf("reading active index: %w", err)
	}

	result := &interfaces.SweepResult{Total: len(ids)}
	now := s.now()

	for _, raw := range ids {
		id := interfaces.SwitchID(raw)

		sw, err := s.Switch(ctx, id)
		if errors.Is(err, interfaces.ErrNotFound) {
			// Stale index entry; the switch record is gone.
			s.gcActiveEntry(ctx, id)
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			metrics.SweepErrors.Inc()
			continue
		}
		if sw.Status != interfaces.SwitchActive {
			// A crash between markTriggered's status write and the index
			// removal leaves entries like this; clean them up now.
			s.gcActiveEntry(ctx, id)
			continue
		}

		if !sw.NextDeadline.Before(now) {
			continue
		}

		if err := s.trigger(ctx, sw, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			metrics.SweepErrors.Inc()
			continue
		}
		result.Processed++
	}

	s.log.Info("Sweep complete",
		"total", result.Total,
		"processed", result.Processed,
		"errors", len(result.Errors))
	return result, nil
}

// trigger releases one overdue switch. The release record is written before
// the status flips: if the sequence crashes in between, the next sweep finds
// the switch still active and overwrites the record idempotently.
func (s *Service) trigger(ctx context.Context, sw *interfaces.DMSSwitch, now time.Time) error {
	if _, err := s.resolver.Resolve(ctx, sw.RecipientUsername); err != nil {
		return fmt.Errorf("resolving recipient %s: %w", sw.RecipientUsername, err)
	}

	payload, err := s.fetchPayload(ctx, sw.PayloadHandle)
	if err != nil {
		return err
	}

	record := interfaces.ReleaseRecord{
		Type:              interfaces.ReleaseRecordType,
		SwitchID:          sw.ID,
		SenderPubkey:      sw.SenderPubkey,
		RecipientUsername: sw.RecipientUsername,
		EncryptedMessage:  payload,
		TriggeredAt:       now.UTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding release record: %w", err)
	}
	if err := s.store.Set(ctx, releaseKey(sw.ID), string(encoded), interfaces.ReleaseTTL); err != nil {
		return fmt.Errorf("writing release record: %w", err)
	}

	if err := s.markTriggered(ctx, sw.ID, now); err != nil {
		return err
	}

	metrics.SwitchesTriggered.Inc()
	s.log.Info("Released switch",
		"switchId", sw.ID.String(),
		"recipient", sw.RecipientUsername.String())
	return nil
}

// markTriggered flips the status, stamps triggeredAt, and drops the id from
// the active index. The owner's index keeps the id so the switch stays in
// their history. Status is written first: a crash before the index removal
// leaves an entry the next sweep garbage-collects.
func (s *Service) markTriggered(ctx context.Context, id interfaces.SwitchID, now time.Time) error {
	if err := s.store.HSet(ctx, switchKey(id), map[string]string{
		"status":      string(interfaces.SwitchTriggered),
		"triggeredAt": now.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("marking switch triggered: %w", err)
	}
	if err := s.store.SRem(ctx, activeIndexKey, id.String()); err != nil {
		return fmt.Errorf("removing switch from active index: %w", err)
	}
	return nil
}

// gcActiveEntry removes a stale id from the active index. Failures are only
// logged; the next sweep retries.
func (s *Service) gcActiveEntry(ctx context.Context, id interfaces.SwitchID) {
	if err := s.store.SRem(ctx, activeIndexKey, id.String()); err != nil {
		s.log.Warn("Failed to clean stale active index entry", "switchId", id.String(), "err", err)
	}
}

func unmarshalRelease(value string, record *interfaces.ReleaseRecord) error {
	return json.Unmarshal([]byte(value), record)
}
