package dmshandler

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

// Handler processes HTTP requests for the dead-man's switch scheduler.
type Handler struct {
	service    interfaces.SwitchScheduler
	verifier   *cryptoutils.Verifier
	cronSecret string
	log        *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified
// dependencies. cronSecret authenticates the external sweep scheduler.
func NewHandler(service interfaces.SwitchScheduler, verifier *cryptoutils.Verifier, cronSecret string, log *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		verifier:   verifier,
		cronSecret: cronSecret,
		log:        log,
	}
}

// RegisterRoutes mounts the DMS API on the router. The static routes are
// registered before the catch-all {switchId} delete.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/dms", func(r chi.Router) {
		r.Post("/create", h.HandleCreate)
		r.Post("/checkin", h.HandleCheckIn)
		r.Get("/list/{pubkey}", h.HandleList)
		r.Get("/release/{switchId}", h.HandleRelease)
		r.Post("/process", h.HandleProcess)
		r.Delete("/{switchId}", h.HandleCancel)
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

// HandleCreate arms a new switch, signed with the recipient username bound
// into the challenge.
//
// URL format: POST /api/dms/create
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSwitchRequest
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
	recipient, err := interfaces.NewUsername(req.RecipientUsername)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}
	message, err := interfaces.NewCiphertext(req.EncryptedMessage)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.verifier.Verify(req.SenderPubkey, req.Signature, req.Timestamp, cryptoutils.ActionDMSCreate, req.RecipientUsername); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	sw, err := h.service.Create(r.Context(), sender, recipient, message, req.CheckInIntervalHours)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.CreateSwitchResponse{
		Success:      true,
		SwitchID:     sw.ID.String(),
		NextDeadline: sw.NextDeadline.UTC().Format(time.RFC3339),
	})
}

// HandleCheckIn extends the deadlines of every active switch the sender
// owns.
//
// URL format: POST /api/dms/checkin
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req api.CheckInRequest
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

	if err := h.verifier.Verify(req.SenderPubkey, req.Signature, req.Timestamp, cryptoutils.ActionDMSCheckin); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	count, latest, err := h.service.CheckIn(r.Context(), sender)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	resp := api.CheckInResponse{
		Success:     true,
		CheckedIn:   true,
		SwitchCount: count,
	}
	if count > 0 {
		resp.NextDeadline = latest.UTC().Format(time.RFC3339)
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// HandleList returns switch metadata for a pubkey. The metadata is
// intentionally public to the owner's pubkey; ciphertexts are never listed.
//
// URL format: GET /api/dms/list/{pubkey}
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, err := interfaces.NewPubkey(chi.URLParam(r, "pubkey"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	switches, err := h.service.List(r.Context(), owner)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	entries := make([]api.SwitchEntry, len(switches))
	for i, sw := range switches {
		entries[i] = api.SwitchEntry{
			SwitchID:          sw.ID.String(),
			RecipientUsername: sw.RecipientUsername.String(),
			IntervalHours:     sw.IntervalHours,
			NextDeadline:      sw.NextDeadline.UTC().Format(time.RFC3339),
			Status:            string(sw.Status),
			CreatedAt:         sw.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !sw.TriggeredAt.IsZero() {
			entries[i].TriggeredAt = sw.TriggeredAt.UTC().Format(time.RFC3339)
		}
	}
	api.WriteJSON(w, http.StatusOK, api.ListSwitchesResponse{Switches: entries})
}

// HandleRelease returns the released-message record for a triggered switch.
// The recipient pulls this by switch id out of band.
//
// URL format: GET /api/dms/release/{switchId}
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewSwitchID(chi.URLParam(r, "switchId"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	record, err := h.service.Release(r.Context(), id)
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, record)
}

// HandleProcess runs one sweep. Authenticated by the shared cron secret, not
// a signature, because no user owns this call.
//
// URL format: POST /api/dms/process
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get(api.CronSecretHeader)
	if provided == "" {
		api.WriteError(w, http.StatusUnauthorized, "missing cron secret")
		return
	}
	if h.cronSecret == "" || !cryptoutils.SecretEqual(provided, h.cronSecret) {
		api.WriteError(w, http.StatusForbidden, "invalid cron secret")
		return
	}

	result, err := h.service.Process(r.Context())
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}

// HandleCancel disarms a switch, signed with the switch id bound into the
// challenge. Unknown ids and switches owned by someone else are both 404.
//
// URL format: DELETE /api/dms/{switchId}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewSwitchID(chi.URLParam(r, "switchId"))
	if err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	var req api.CancelSwitchRequest
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

	if err := h.verifier.Verify(req.SenderPubkey, req.Signature, req.Timestamp, cryptoutils.ActionDMSCancel, id.String()); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	if err := h.service.Cancel(r.Context(), sender, id); err != nil {
		api.WriteServiceError(w, h.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}
