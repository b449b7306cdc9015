package blobstore

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vigilkey/vigil-backend/interfaces"
)

// Factory creates blob store backends from URI strings.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a backend factory.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// BackendFor creates a backend from a location URI.
//
// Supported schemes:
//   - http:// or https:// - generic upload endpoint
//   - ipfs://host:port - IPFS node API
//   - s3://[accessKey:secretKey@]bucket/prefix?region=...&endpoint=... - S3
//   - vault://host:port/mount/path?token=... - HashiCorp Vault KV
func (f *Factory) BackendFor(locationURI string) (interfaces.BlobStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid blob store URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPBackend(strings.TrimSuffix(locationURI, "/"), f.log), nil

	case "ipfs":
		return NewIPFSBackend(u.Host, f.log), nil

	case "s3":
		var accessKey, secretKey string
		if u.User != nil {
			accessKey = u.User.Username()
			secretKey, _ = u.User.Password()
		}
		region := u.Query().Get("region")
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Backend(
			u.Host,
			strings.TrimPrefix(u.Path, "/"),
			region,
			u.Query().Get("endpoint"),
			accessKey,
			secretKey,
			f.log,
		)

	case "vault":
		parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vault URI must include /mount/path")
		}
		scheme := "https"
		if u.Query().Get("insecure") == "true" {
			scheme = "http"
		}
		return NewVaultBackend(
			fmt.Sprintf("%s://%s", scheme, u.Host),
			u.Query().Get("token"),
			parts[0],
			parts[1],
			f.log,
		)

	default:
		return nil, fmt.Errorf("unsupported blob store scheme: %s", u.Scheme)
	}
}
