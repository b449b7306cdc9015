// Package clients provides HTTP clients for the Vigil APIs.
//
// The clients implement the cryptographic contract the server enforces on
// submitted material: requests are signed with detached Ed25519 signatures
// over the canonical challenge strings, secrets are Shamir-split before
// distribution, and every share ciphertext is a sealed box addressed to its
// recipient. The server never sees plaintext key material.
package clients
