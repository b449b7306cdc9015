package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// VaultBackend stores payloads in a HashiCorp Vault KV mount. Payloads are
// already ciphertext, so Vault adds at-rest protection and access audit
// rather than confidentiality. The handle is the SHA-256 hex of the payload.
type VaultBackend struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultBackend creates a Vault backend using token authentication.
func NewVaultBackend(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultBackend{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

// Upload writes the ciphertext under its content hash.
func (b *VaultBackend) Upload(ctx context.Context, data []byte) (string, error) {
	hash := sha256.Sum256(data)
	handle := hex.EncodeToString(hash[:])

	_, err := b.client.Logical().WriteWithContext(ctx, b.secretPath(handle), map[string]interface{}{
		"data": map[string]interface{}{
			"payload": base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: vault write: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Uploaded payload to Vault", "handle", handle, "size", len(data))
	return handle, nil
}

// Fetch reads the ciphertext behind a handle.
func (b *VaultBackend) Fetch(ctx context.Context, handle string) ([]byte, error) {
	secret, err := b.client.Logical().ReadWithContext(ctx, b.secretPath(handle))
	if err != nil {
		return nil, fmt.Errorf("%w: vault read %s: %v", interfaces.ErrBackendUnavailable, handle, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	encoded, ok := data["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("malformed vault secret at %s", handle)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding vault payload: %w", err)
	}
	return payload, nil
}

// Available checks the Vault health endpoint.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Debug("Vault backend unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns an identifier for logging.
func (b *VaultBackend) Name() string {
	return "vault"
}

func (b *VaultBackend) secretPath(handle string) string {
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, handle)
}
