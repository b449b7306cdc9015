package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// IPFSBackend stores payloads on IPFS. The handle is the content CID, which
// doubles as an integrity check on fetch.
type IPFSBackend struct {
	shell *shell.Shell
	log   *slog.Logger
}

// NewIPFSBackend connects to an IPFS node API at host:port.
func NewIPFSBackend(apiAddr string, log *slog.Logger) *IPFSBackend {
	return &IPFSBackend{
		shell: shell.NewShell(apiAddr),
		log:   log,
	}
}

// Upload adds and pins the ciphertext, returning its CID.
func (b *IPFSBackend) Upload(ctx context.Context, data []byte) (string, error) {
	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return "", fmt.Errorf("%w: ipfs add: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Uploaded payload to IPFS", "cid", cid, "size", len(data))
	return cid, nil
}

// Fetch cats the content behind a CID.
func (b *IPFSBackend) Fetch(ctx context.Context, handle string) ([]byte, error) {
	reader, err := b.shell.Cat(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: ipfs cat %s: %v", interfaces.ErrBackendUnavailable, handle, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading ipfs content: %w", err)
	}
	return data, nil
}

// Available checks the node responds to an ID call.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	_, err := b.shell.ID()
	if err != nil {
		b.log.Debug("IPFS backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns an identifier for logging.
func (b *IPFSBackend) Name() string {
	return "ipfs"
}
