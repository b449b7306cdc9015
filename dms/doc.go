// Package dms implements the dead-man's switch scheduler.
//
// A sender stores a pre-encrypted message addressed to a registered username
// together with a check-in interval. Every signed check-in pushes each of the
// sender's active switches' deadlines forward by that switch's own interval.
// The periodic sweep, driven by an external cron caller through a single-shot
// endpoint, scans the active-switch index and releases every switch whose
// deadline passed: the ciphertext is copied into a released-message record at
// a well-known key the recipient pulls out of band.
//
// Payloads live in an external blob store when it is reachable; otherwise the
// ciphertext is kept in the local key-value store under a year-long TTL and a
// "local:" handle so the sweep can still find it at trigger time.
package dms
