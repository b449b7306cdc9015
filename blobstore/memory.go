package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// MemoryBackend is an in-process blob store used by tests and local
// development. Handles are content hashes, like the S3 and Vault backends.
type MemoryBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// Failing forces every Upload to fail, simulating an outage so tests can
	// drive the local fallback path.
	Failing bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

// Upload stores the blob under its content hash.
func (b *MemoryBackend) Upload(ctx context.Context, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Failing {
		return "", interfaces.ErrBackendUnavailable
	}

	hash := sha256.Sum256(data)
	handle := hex.EncodeToString(hash[:])
	stored := make([]byte, len(data))
	copy(stored, data)
	b.blobs[handle] = stored
	return handle, nil
}

// Fetch returns a stored blob.
func (b *MemoryBackend) Fetch(ctx context.Context, handle string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.blobs[handle]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Available reports the simulated outage state.
func (b *MemoryBackend) Available(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.Failing
}

// Name returns an identifier for logging.
func (b *MemoryBackend) Name() string {
	return "memory"
}
