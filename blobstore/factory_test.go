package blobstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilkey/vigil-backend/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackendFor(t *testing.T) {
	factory := NewFactory(testLogger())

	backend, err := factory.BackendFor("https://blobs.example.com")
	require.NoError(t, err)
	assert.IsType(t, &HTTPBackend{}, backend)

	backend, err = factory.BackendFor("ipfs://127.0.0.1:5001")
	require.NoError(t, err)
	assert.IsType(t, &IPFSBackend{}, backend)

	backend, err = factory.BackendFor("s3://key:secret@mybucket/payloads?region=eu-west-1")
	require.NoError(t, err)
	assert.IsType(t, &S3Backend{}, backend)

	backend, err = factory.BackendFor("vault://vault.example.com:8200/secret/vigil?token=abc")
	require.NoError(t, err)
	assert.IsType(t, &VaultBackend{}, backend)

	_, err = factory.BackendFor("gopher://nope")
	assert.Error(t, err)

	_, err = factory.BackendFor("vault://vault.example.com:8200/flat?token=abc")
	assert.Error(t, err)
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	blobs := map[string][]byte{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			data, _ := io.ReadAll(r.Body)
			blobs["blob-1"] = data
			json.NewEncoder(w).Encode(map[string]string{"id": "blob-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/blob/blob-1":
			w.Write(blobs["blob-1"])
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, testLogger())

	handle, err := backend.Upload(context.Background(), []byte("ciphertext"))
	require.NoError(t, err)
	assert.Equal(t, "blob-1", handle)

	data, err := backend.Fetch(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), data)

	_, err = backend.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestHTTPBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	backend := NewHTTPBackend(server.URL, testLogger())
	_, err := backend.Upload(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()

	handle, err := backend.Upload(context.Background(), []byte("payload"))
	require.NoError(t, err)

	data, err := backend.Fetch(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = backend.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	backend.Failing = true
	assert.False(t, backend.Available(context.Background()))
	_, err = backend.Upload(context.Background(), []byte("payload"))
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}
