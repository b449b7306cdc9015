// Package cryptoutils implements the cryptographic primitives shared by the
// Vigil server and its clients.
//
// The server side is the signed-request verifier: every privileged request
// carries a detached Ed25519 signature over a canonical challenge string that
// binds the operation, any operation-specific identifier, and a timestamp.
// The verifier reconstructs the challenge bit-exact and rejects stale or
// future-dated requests, returning one opaque error regardless of which check
// failed.
//
// The client side provides the counterpart signer, sealed-box encryption for
// share and message ciphertexts, and Shamir split/combine for key shares. The
// server never calls the decryption or combine paths; they exist for clients
// and for end-to-end tests that exercise the contract the server enforces on
// submitted material.
package cryptoutils
