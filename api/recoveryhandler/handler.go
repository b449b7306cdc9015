package recoveryhandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vigilkey/vigil-backend/api"
	"github.com/vigilkey/vigil-backend/cryptoutils"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the recovery orchestrator.
type Handler struct {
	service  interfaces.RecoveryOrchestrator
	verifier *cryptoutils.Verifier
	log      *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified
// dependencies.
func NewHandler(service interfaces.RecoveryOrchestrator, verifier *cryptoutils.Verifier, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		log:      log,
	}
}

// RegisterRoutes mounts the recovery API on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/recovery", func(r chi.Router) {
		r.Post("/distribute", h.HandleDistribute)
		r.Get("/guardians/{pubkey}", h.HandleGuardians)
		r.Get("/guardianships/{pubkey}", h.HandleGuardianships)
		r.Get("/share/{guardian}/{owner}", h.HandleShareRecord)
		r.Post("/request", h.HandleRequestSession)
		r.Get("/session/{id}/status", h.HandleSessionStatus)
		r.Post("/session/{id}/approve", h.HandleApprove)
		r.Get("/session/{id}/shares", h.HandleShares)
		r.Delete("/revoke", h.HandleRevoke)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		api.WriteError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

// HandleDistribute processes guardian share distribution.
//
// URL format: POST /api/recovery/distribute
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	var req api.DistributeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Signature == "" || req.Timestamp == 0 {
		api.WriteError(w, http.StatusUnauthorized, "missing signature or timestamp")
		return
	}

	sender, err := interfaces.NewPubkey(req.SenderPubkey)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.verifier.Verify(req.SenderPubkey, req.Signature, req.Timestamp, cryptoutils.ActionRecoveryDistribute); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	guardians := make([]interfaces.GuardianInput, 0, len(req.Guardians))
	for _, entry := range req.Guardians {
		pubkey, err := interfaces.NewPubkey(entry.Pubkey)
		if err != nil {
			api.WriteServiceError(w, h.log, err)
			return
		}
		share, err := interfaces.NewCiphertext(entry.EncryptedShare)
		if err != nil {
			api.WriteServiceError(w, h.log, err)
			return
		}
		guardians = append(guardians, interfaces.GuardianInput{
			Pubkey:         pubkey,
			EncryptedShare: share,
			ShareIndex:     entry.ShareIndex,
		})
	}

	if err := h.service.Distribute(r.Context(), sender, req.Threshold, guardians); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.DistributeResponse{
		Success:       true,
		GuardianCount: len(guardians),
		Threshold:     req.Threshold,
	})
}

// HandleGuardians returns the public configuration for an owner. The guardian
// set is treated as public, so no authentication is required.
//
// URL format: GET /api/recovery/guardians/{pubkey}
func (h *Handler) HandleGuardians(w http.ResponseWriter, r *http.Request) {
	owner, err := interfaces.NewPubkey(chi.URLParam(r, "pubkey"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	config, err := h.service.Config(r.Context(), owner)
	if err == nil {
		guardians := make([]string, len(config.Guardians))
		for i, g := range config.Guardians {
			guardians[i] = g.String()
		}
		api.WriteJSON(w, http.StatusOK, api.GuardiansResponse{
			Configured: true,
			Guardians:  guardians,
			Threshold:  config.Threshold,
			CreatedAt:  config.CreatedAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if api.StatusFromError(err) == http.StatusNotFound {
		api.WriteJSON(w, http.StatusOK, api.GuardiansResponse{Configured: false})
		return
	}
	api.WriteServiceError(w, h.log, err)
}

// HandleGuardianships lists the owners a pubkey holds shares for.
//
// URL format: GET /api/recovery/guardianships/{pubkey}
func (h *Handler) HandleGuardianships(w http.ResponseWriter, r *http.Request) {
	guardian, err := interfaces.NewPubkey(chi.URLParam(r, "pubkey"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	owners, err := h.service.Guardianships(r.Context(), guardian)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	guardianships := make([]string, len(owners))
	for i, o := range owners {
		guardianships[i] = o.String()
	}
	api.WriteJSON(w, http.StatusOK, api.GuardianshipsResponse{Guardianships: guardianships})
}

// HandleShareRecord returns the stored share for a (guardian, owner) pair.
// Guardians fetch this when preparing an approval; the ciphertext is sealed
// to the guardian's encryption key, so it is useless to anyone else.
//
// URL format: GET /api/recovery/share/{guardian}/{owner}
func (h *Handler) HandleShareRecord(w http.ResponseWriter, r *http.Request) {
	guardian, err := interfaces.NewPubkey(chi.URLParam(r, "guardian"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}
	owner, err := interfaces.NewPubkey(chi.URLParam(r, "owner"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	share, err := h.service.Share(r.Context(), guardian, owner)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.ShareRecordResponse{
		EncryptedShare: share.EncryptedShare.String(),
		ShareIndex:     share.ShareIndex,
		CreatedAt:      share.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleRequestSession opens a recovery session. Unauthenticated by design:
// the requester has, by hypothesis, lost all signing keys.
//
// URL format: POST /api/recovery/request
func (h *Handler) HandleRequestSession(w http.ResponseWriter, r *http.Request) {
	var req api.RequestSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	owner, err := interfaces.NewPubkey(req.OwnerPubkey)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	requested := make([]interfaces.Pubkey, 0, len(req.RequestedGuardians))
	for _, raw := range req.RequestedGuardians {
		guardian, err := interfaces.NewPubkey(raw)
		if err != nil {
			api.WriteServiceError(w, h.log, err)
			return
		}
		requested = append(requested, guardian)
	}

	session, err := h.service.RequestSession(r.Context(), owner, req.EphemeralPubkey, requested)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.RequestSessionResponse{
		Success:   true,
		SessionID: session.ID.String(),
		Threshold: session.Threshold,
		ExpiresIn: api.SessionExpiry,
	})
}

// HandleSessionStatus reports the approval tally for a session. The
// unguessable session id is the only guard.
//
// URL format: GET /api/recovery/session/{id}/status
func (h *Handler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewSessionID(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	session, err := h.service.Session(r.Context(), id)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.SessionStatusResponse{
		SessionID:         session.ID.String(),
		Status:            string(session.Status),
		ApprovalsReceived: session.Approvals,
		ThresholdRequired: session.Threshold,
		OwnerPubkey:       session.OwnerPubkey.String(),
		CreatedAt:         session.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleApprove records one guardian's approval, signed by the guardian with
// the session id bound into the challenge.
//
// URL format: POST /api/recovery/session/{id}/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewSessionID(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	var req api.ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Signature == "" || req.Timestamp == 0 {
		api.WriteError(w, http.StatusUnauthorized, "missing signature or timestamp")
		return
	}

	guardian, err := interfaces.NewPubkey(req.GuardianPubkey)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}
	share, err := interfaces.NewCiphertext(req.ReEncryptedShare)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.verifier.Verify(req.GuardianPubkey, req.Signature, req.Timestamp, cryptoutils.ActionRecoveryApprove, id.String()); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	session, err := h.service.Approve(r.Context(), id, guardian, share)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.ApproveResponse{
		Approved:          true,
		ApprovalsReceived: session.Approvals,
		ThresholdRequired: session.Threshold,
	})
}

// HandleShares releases the re-encrypted shares of a ready session.
// Unauthenticated by design: every share is sealed to the session's one-time
// ephemeral key, so an eavesdropper learns nothing useful.
//
// URL format: GET /api/recovery/session/{id}/shares
func (h *Handler) HandleShares(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewSessionID(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	shares, err := h.service.ReleasedShares(r.Context(), id)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	entries := make([]api.ShareEntry, len(shares))
	for i, share := range shares {
		entries[i] = api.ShareEntry{
			GuardianPubkey:   share.GuardianPubkey.String(),
			ReEncryptedShare: share.ReEncryptedShare.String(),
		}
	}
	api.WriteJSON(w, http.StatusOK, api.SharesResponse{Shares: entries})
}

// HandleRevoke deletes the sender's configuration and all guardian shares.
//
// URL format: DELETE /api/recovery/revoke
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req api.RevokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Signature == "" || req.Timestamp == 0 {
		api.WriteError(w, http.StatusUnauthorized, "missing signature or timestamp")
		return
	}

	sender, err := interfaces.NewPubkey(req.SenderPubkey)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.verifier.Verify(req.SenderPubkey, req.Signature, req.Timestamp, cryptoutils.ActionRecoveryRevoke); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.service.Revoke(r.Context(), sender); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}
