// Package recovery implements the social recovery orchestrator.
//
// An owner splits their identity key client-side, seals one share to each
// guardian's encryption key, and hands the ciphertexts to this service
// (distribute). When the owner reappears on a new device, anyone may open a
// recovery session naming a subset of the guardians; the requester has, by
// hypothesis, lost every signing key, so session creation is unauthenticated.
// Guardians approve the session with a signed request carrying their share
// re-encrypted to the session's one-time ephemeral key. Once approvals reach
// the configured threshold the session becomes ready and the re-encrypted
// shares are released to whoever knows the session id.
//
// The service never decrypts a share and never verifies the Shamir split;
// ciphertexts are opaque. Sessions and their shares live under a 24-hour TTL
// in the key-value store, which is how sessions expire.
package recovery
