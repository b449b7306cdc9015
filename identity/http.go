package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// HTTPResolver resolves usernames through a JSON lookup endpoint:
// GET <endpoint>/resolve/<username> returning {"username": ..., "pubkey": ...}.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPResolver creates a resolver for the given base endpoint URL.
func NewHTTPResolver(endpoint string, log *slog.Logger) *HTTPResolver {
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type resolveResponse struct {
	Username string `json:"username"`
	Pubkey   string `json:"pubkey"`
}

// Resolve looks up a username. A 404 from the registry maps to
// ErrUnknownUsername; transport failures map to ErrBackendUnavailable.
func (r *HTTPResolver) Resolve(ctx context.Context, username interfaces.Username) (interfaces.Pubkey, error) {
	lookupURL := fmt.Sprintf("%s/resolve/%s", r.endpoint, url.PathEscape(username.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("building lookup request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: identity lookup: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", interfaces.ErrUnknownUsername
	default:
		return "", fmt.Errorf("%w: identity lookup returned %d", interfaces.ErrBackendUnavailable, resp.StatusCode)
	}

	var parsed resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding lookup response: %w", err)
	}

	pubkey, err := interfaces.NewPubkey(parsed.Pubkey)
	if err != nil {
		return "", fmt.Errorf("registry returned malformed pubkey for %s: %w", username, err)
	}

	r.log.Debug("Resolved username", "username", username.String())
	return pubkey, nil
}
