// Package blobstore stores encrypted message payloads with external
// backends.
//
// Backends implement interfaces.BlobStore and are selected by URI scheme
// through Factory: an HTTP upload endpoint, IPFS, S3-compatible object
// storage, or HashiCorp Vault. Handles returned by Upload are opaque and
// backend-specific; the scheduler records them on the switch and hands them
// back at trigger time.
//
// Payload bytes are ciphertext before they ever reach a backend, so no
// backend is trusted with plaintext. The "local:" fallback handle is not a
// backend: it is handled by the scheduler against the key-value store when
// the configured backend's upload fails or no backend is configured.
package blobstore
