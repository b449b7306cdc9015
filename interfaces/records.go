package interfaces

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Retention windows for store records. Session records and their shares expire
// together; switch metadata is kept indefinitely.
const (
	// SessionTTL bounds the lifetime of a recovery session and its
	// re-encrypted shares.
	SessionTTL = 24 * time.Hour

	// FallbackPayloadTTL bounds the lifetime of ciphertexts stored in the
	// local fallback when the external blob store is down.
	FallbackPayloadTTL = 365 * 24 * time.Hour

	// ReleaseTTL bounds how long a released message stays retrievable.
	ReleaseTTL = 90 * 24 * time.Hour
)

// RecoveryConfig is the owner-level guardian configuration written by
// distribute and deleted by revoke.
type RecoveryConfig struct {
	Threshold int
	Guardians []Pubkey
	CreatedAt time.Time
}

// HasGuardian reports whether the given pubkey is in the configured guardian
// list.
func (c *RecoveryConfig) HasGuardian(p Pubkey) bool {
	for _, g := range c.Guardians {
		if g == p {
			return true
		}
	}
	return false
}

// Fields encodes the config as store hash fields.
func (c *RecoveryConfig) Fields() map[string]string {
	guardians, _ := json.Marshal(c.Guardians)
	return map[string]string{
		"threshold": strconv.Itoa(c.Threshold),
		"guardians": string(guardians),
		"createdAt": c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseRecoveryConfig decodes a config from store hash fields.
func ParseRecoveryConfig(fields map[string]string) (*RecoveryConfig, error) {
	threshold, err := intField(fields, "threshold")
	if err != nil {
		return nil, err
	}
	var guardians []Pubkey
	if err := jsonField(fields, "guardians", &guardians); err != nil {
		return nil, err
	}
	createdAt, err := timeField(fields, "createdAt")
	if err != nil {
		return nil, err
	}
	return &RecoveryConfig{
		Threshold: threshold,
		Guardians: guardians,
		CreatedAt: createdAt,
	}, nil
}

// GuardianShare is one encrypted share held on behalf of a guardian for a
// specific owner. The ciphertext is addressed to the guardian's X25519 key;
// the server never decrypts it.
type GuardianShare struct {
	EncryptedShare Ciphertext
	ShareIndex     int
	CreatedAt      time.Time
}

// Fields encodes the share as store hash fields.
func (s *GuardianShare) Fields() map[string]string {
	return map[string]string{
		"encryptedShare": s.EncryptedShare.String(),
		"shareIndex":     strconv.Itoa(s.ShareIndex),
		"createdAt":      s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseGuardianShare decodes a share from store hash fields.
func ParseGuardianShare(fields map[string]string) (*GuardianShare, error) {
	encrypted, err := requiredField(fields, "encryptedShare")
	if err != nil {
		return nil, err
	}
	index, err := intField(fields, "shareIndex")
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(fields, "createdAt")
	if err != nil {
		return nil, err
	}
	return &GuardianShare{
		EncryptedShare: Ciphertext(encrypted),
		ShareIndex:     index,
		CreatedAt:      createdAt,
	}, nil
}

// RecoverySession is the transient k-of-n approval session. It lives under a
// 24-hour TTL; expiry deletes the record and is how sessions reach their
// terminal state.
type RecoverySession struct {
	ID                 SessionID
	OwnerPubkey        Pubkey
	EphemeralPubkey    string
	RequestedGuardians []Pubkey
	Threshold          int
	Approvals          int
	Status             SessionStatus
	CreatedAt          time.Time
}

// IsRequested reports whether the guardian was named when the session was
// created. Approvals from anyone else are rejected.
func (s *RecoverySession) IsRequested(g Pubkey) bool {
	for _, r := range s.RequestedGuardians {
		if r == g {
			return true
		}
	}
	return false
}

// Fields encodes the session as store hash fields.
func (s *RecoverySession) Fields() map[string]string {
	requested, _ := json.Marshal(s.RequestedGuardians)
	return map[string]string{
		"ownerPubkey":        s.OwnerPubkey.String(),
		"ephemeralPubkey":    s.EphemeralPubkey,
		"requestedGuardians": string(requested),
		"threshold":          strconv.Itoa(s.Threshold),
		"approvals":          strconv.Itoa(s.Approvals),
		"status":             string(s.Status),
		"createdAt":          s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseRecoverySession decodes a session from store hash fields.
func ParseRecoverySession(id SessionID, fields map[string]string) (*RecoverySession, error) {
	owner, err := requiredField(fields, "ownerPubkey")
	if err != nil {
		return nil, err
	}
	ephemeral, err := requiredField(fields, "ephemeralPubkey")
	if err != nil {
		return nil, err
	}
	var requested []Pubkey
	if err := jsonField(fields, "requestedGuardians", &requested); err != nil {
		return nil, err
	}
	threshold, err := intField(fields, "threshold")
	if err != nil {
		return nil, err
	}
	approvals, err := intField(fields, "approvals")
	if err != nil {
		return nil, err
	}
	status, err := requiredField(fields, "status")
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(fields, "createdAt")
	if err != nil {
		return nil, err
	}
	return &RecoverySession{
		ID:                 id,
		OwnerPubkey:        Pubkey(owner),
		EphemeralPubkey:    ephemeral,
		RequestedGuardians: requested,
		Threshold:          threshold,
		Approvals:          approvals,
		Status:             SessionStatus(status),
		CreatedAt:          createdAt,
	}, nil
}

// SessionShare is one guardian's re-encrypted share for a session, addressed
// to the session's ephemeral key.
type SessionShare struct {
	GuardianPubkey   Pubkey
	ReEncryptedShare Ciphertext
}

// DMSSwitch is the per-switch metadata record. TriggeredAt is the zero time
// until the switch fires.
type DMSSwitch struct {
	ID                SwitchID
	SenderPubkey      Pubkey
	RecipientUsername Username
	PayloadHandle     PayloadHandle
	IntervalHours     int
	NextDeadline      time.Time
	Status            SwitchStatus
	CreatedAt         time.Time
	TriggeredAt       time.Time
}

// Interval returns the check-in interval as a duration.
func (w *DMSSwitch) Interval() time.Duration {
	return time.Duration(w.IntervalHours) * time.Hour
}

// Fields encodes the switch as store hash fields.
func (w *DMSSwitch) Fields() map[string]string {
	fields := map[string]string{
		"senderPubkey":      w.SenderPubkey.String(),
		"recipientUsername": w.RecipientUsername.String(),
		"payloadHandle":     w.PayloadHandle.String(),
		"intervalHours":     strconv.Itoa(w.IntervalHours),
		"nextDeadline":      w.NextDeadline.UTC().Format(time.RFC3339),
		"status":            string(w.Status),
		"createdAt":         w.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !w.TriggeredAt.IsZero() {
		fields["triggeredAt"] = w.TriggeredAt.UTC().Format(time.RFC3339)
	}
	return fields
}

// ParseDMSSwitch decodes a switch from store hash fields.
func ParseDMSSwitch(id SwitchID, fields map[string]string) (*DMSSwitch, error) {
	sender, err := requiredField(fields, "senderPubkey")
	if err != nil {
		return nil, err
	}
	recipient, err := requiredField(fields, "recipientUsername")
	if err != nil {
		return nil, err
	}
	handle, err := requiredField(fields, "payloadHandle")
	if err != nil {
		return nil, err
	}
	interval, err := intField(fields, "intervalHours")
	if err != nil {
		return nil, err
	}
	deadline, err := timeField(fields, "nextDeadline")
	if err != nil {
		return nil, err
	}
	status, err := requiredField(fields, "status")
	if err != nil {
		return nil, err
	}
	createdAt, err := timeField(fields, "createdAt")
	if err != nil {
		return nil, err
	}
	sw := &DMSSwitch{
		ID:                id,
		SenderPubkey:      Pubkey(sender),
		RecipientUsername: Username(recipient),
		PayloadHandle:     PayloadHandle(handle),
		IntervalHours:     interval,
		NextDeadline:      deadline,
		Status:            SwitchStatus(status),
		CreatedAt:         createdAt,
	}
	if raw, ok := fields["triggeredAt"]; ok && raw != "" {
		triggeredAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("malformed field triggeredAt: %w", err)
		}
		sw.TriggeredAt = triggeredAt
	}
	return sw, nil
}

// ReleaseRecord is the JSON document written at dms:release:<switchId> when a
// switch fires. Recipients pull it by switch id out of band.
type ReleaseRecord struct {
	Type              string     `json:"type"`
	SwitchID          SwitchID   `json:"switchId"`
	SenderPubkey      Pubkey     `json:"senderPubkey"`
	RecipientUsername Username   `json:"recipientUsername"`
	EncryptedMessage  Ciphertext `json:"encryptedMessage"`
	TriggeredAt       time.Time  `json:"triggeredAt"`
}

// ReleaseRecordType is the discriminator value in every release record.
const ReleaseRecordType = "dms_release"

func requiredField(fields map[string]string, name string) (string, error) {
	value, ok := fields[name]
	if !ok || value == "" {
		return "", fmt.Errorf("missing required field %s", name)
	}
	return value, nil
}

func intField(fields map[string]string, name string) (int, error) {
	raw, err := requiredField(fields, name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed field %s: %w", name, err)
	}
	return value, nil
}

func timeField(fields map[string]string, name string) (time.Time, error) {
	raw, err := requiredField(fields, name)
	if err != nil {
		return time.Time{}, err
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed field %s: %w", name, err)
	}
	return value, nil
}

func jsonField(fields map[string]string, name string, out any) error {
	raw, err := requiredField(fields, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("malformed field %s: %w", name, err)
	}
	return nil
}
