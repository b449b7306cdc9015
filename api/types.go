package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// CronSecretHeader carries the shared secret that authenticates the external
// sweep scheduler on /api/dms/process.
const CronSecretHeader = "X-Cron-Secret"

// SessionExpiry is the advertised session lifetime returned by /request.
const SessionExpiry = "24h"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GuardianEntry is one guardian submitted with distribute.
type GuardianEntry struct {
	Pubkey         string `json:"pubkey"`
	EncryptedShare string `json:"encryptedShare"`
	ShareIndex     int    `json:"shareIndex"`
}

// DistributeRequest sets up or replaces an owner's guardian configuration.
type DistributeRequest struct {
	SenderPubkey string          `json:"senderPubkey"`
	Threshold    int             `json:"threshold"`
	Guardians    []GuardianEntry `json:"guardians"`
	Signature    string          `json:"signature"`
	Timestamp    int64           `json:"timestamp"`
}

// DistributeResponse confirms a distribution.
type DistributeResponse struct {
	Success       bool `json:"success"`
	GuardianCount int  `json:"guardianCount"`
	Threshold     int  `json:"threshold"`
}

// GuardiansResponse is the public view of an owner's configuration.
type GuardiansResponse struct {
	Configured bool     `json:"configured"`
	Guardians  []string `json:"guardians,omitempty"`
	Threshold  int      `json:"threshold,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty"`
}

// GuardianshipsResponse lists the owners a pubkey guards.
type GuardianshipsResponse struct {
	Guardianships []string `json:"guardianships"`
}

// ShareRecordResponse is the guardian's view of their stored share for one
// owner, used when preparing an approval.
type ShareRecordResponse struct {
	EncryptedShare string `json:"encryptedShare"`
	ShareIndex     int    `json:"shareIndex"`
	CreatedAt      string `json:"createdAt"`
}

// RequestSessionRequest opens a recovery session. Unauthenticated: the
// requester has lost their keys.
type RequestSessionRequest struct {
	OwnerPubkey        string   `json:"ownerPubkey"`
	EphemeralPubkey    string   `json:"ephemeralPubkey"`
	RequestedGuardians []string `json:"requestedGuardians"`
}

// RequestSessionResponse returns the fresh session handle.
type RequestSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Threshold int    `json:"threshold"`
	ExpiresIn string `json:"expiresIn"`
}

// SessionStatusResponse is the poll surface for a pending session.
type SessionStatusResponse struct {
	SessionID         string `json:"sessionId"`
	Status            string `json:"status"`
	ApprovalsReceived int    `json:"approvalsReceived"`
	ThresholdRequired int    `json:"thresholdRequired"`
	OwnerPubkey       string `json:"ownerPubkey"`
	CreatedAt         string `json:"createdAt"`
}

// ApproveRequest carries one guardian's approval and re-encrypted share.
type ApproveRequest struct {
	GuardianPubkey   string `json:"guardianPubkey"`
	ReEncryptedShare string `json:"reEncryptedShare"`
	Signature        string `json:"signature"`
	Timestamp        int64  `json:"timestamp"`
}

// ApproveResponse reports the approval tally.
type ApproveResponse struct {
	Approved          bool `json:"approved"`
	ApprovalsReceived int  `json:"approvalsReceived"`
	ThresholdRequired int  `json:"thresholdRequired"`
}

// ShareEntry is one released re-encrypted share.
type ShareEntry struct {
	GuardianPubkey   string `json:"guardianPubkey"`
	ReEncryptedShare string `json:"reEncryptedShare"`
}

// SharesResponse returns the released shares of a ready session.
type SharesResponse struct {
	Shares []ShareEntry `json:"shares"`
}

// RevokeRequest deletes an owner's configuration and shares.
type RevokeRequest struct {
	SenderPubkey string `json:"senderPubkey"`
	Signature    string `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
}

// SuccessResponse is the minimal acknowledgement body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// CreateSwitchRequest arms a new dead-man's switch.
type CreateSwitchRequest struct {
	RecipientUsername    string `json:"recipientUsername"`
	EncryptedMessage     string `json:"encryptedMessage"`
	CheckInIntervalHours int    `json:"checkInIntervalHours"`
	SenderPubkey         string `json:"senderPubkey"`
	Signature            string `json:"signature"`
	Timestamp            int64  `json:"timestamp"`
}

// CreateSwitchResponse returns the new switch handle and first deadline.
type CreateSwitchResponse struct {
	Success      bool   `json:"success"`
	SwitchID     string `json:"switchId"`
	NextDeadline string `json:"nextDeadline"`
}

// CheckInRequest proves the sender is alive.
type CheckInRequest struct {
	SenderPubkey string `json:"senderPubkey"`
	Signature    string `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
}

// CheckInResponse reports how many switches were extended.
type CheckInResponse struct {
	Success      bool   `json:"success"`
	CheckedIn    bool   `json:"checkedIn"`
	SwitchCount  int    `json:"switchCount"`
	NextDeadline string `json:"nextDeadline,omitempty"`
}

// SwitchEntry is the metadata view of one switch. Ciphertexts are never
// part of a listing.
type SwitchEntry struct {
	SwitchID          string `json:"switchId"`
	RecipientUsername string `json:"recipientUsername"`
	IntervalHours     int    `json:"intervalHours"`
	NextDeadline      string `json:"nextDeadline"`
	Status            string `json:"status"`
	CreatedAt         string `json:"createdAt"`
	TriggeredAt       string `json:"triggeredAt,omitempty"`
}

// ListSwitchesResponse lists an owner's switches, history included.
type ListSwitchesResponse struct {
	Switches []SwitchEntry `json:"switches"`
}

// CancelSwitchRequest disarms a switch.
type CancelSwitchRequest struct {
	SenderPubkey string `json:"senderPubkey"`
	Signature    string `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
}

// WriteJSON encodes a response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError writes the uniform error shape.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError maps a service error to its status code and writes it.
// Internal faults are masked and logged; everything else surfaces its own
// message.
func WriteServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "err", err)
		WriteError(w, status, "Internal server error")
		return
	}
	WriteError(w, status, err.Error())
}

// StatusFromError classifies a service error per the error handling design.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrAuthMissing):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrInvalidSignature),
		errors.Is(err, interfaces.ErrGuardianNotAuthorized),
		errors.Is(err, interfaces.ErrNotReady):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound),
		errors.Is(err, interfaces.ErrUnknownUsername):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadyApproved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
