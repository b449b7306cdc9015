package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// HTTPBackend stores payloads through a generic upload endpoint: POST the
// ciphertext to <endpoint>/upload and receive {"id": ...}; GET
// <endpoint>/blob/<id> to read it back. Gateways in front of permanent
// storage networks expose this shape.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPBackend creates a backend for the given base endpoint URL.
func NewHTTPBackend(endpoint string, log *slog.Logger) *HTTPBackend {
	return &HTTPBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload posts the ciphertext and returns the server-assigned handle.
func (b *HTTPBackend) Upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: blob upload: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: blob upload returned %d", interfaces.ErrBackendUnavailable, resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("upload endpoint returned no id")
	}

	b.log.Debug("Uploaded payload", "handle", parsed.ID, "size", len(data))
	return parsed.ID, nil
}

// Fetch reads a payload back by handle.
func (b *HTTPBackend) Fetch(ctx context.Context, handle string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/blob/"+url.PathEscape(handle), nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: blob fetch: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, interfaces.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: blob fetch returned %d", interfaces.ErrBackendUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob body: %w", err)
	}
	return data, nil
}

// Available probes the endpoint.
func (b *HTTPBackend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.endpoint+"/upload", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Name returns an identifier for logging.
func (b *HTTPBackend) Name() string {
	return "http-blob"
}
