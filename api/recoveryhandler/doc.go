// Package recoveryhandler exposes the recovery orchestrator over HTTP under
// /api/recovery.
//
// The privileged operations (distribute, approve, revoke) are authenticated
// by detached Ed25519 signatures over canonical challenges. Session creation
// and share release are deliberately unauthenticated: the requester has lost
// their signing keys, and the released shares are sealed to a one-time
// ephemeral key, so transport authorization would add nothing.
package recoveryhandler
