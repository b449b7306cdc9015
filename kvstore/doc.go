// Package kvstore provides the key-value store adapter backing both Vigil
// services.
//
// RedisStore is the production implementation over a Redis-compatible server
// reached through KV_URL. MemoryStore is a process-local implementation with
// the same contract, including TTL expiry and atomic SetNX, used by tests
// and available as a zero-dependency fallback for local development.
//
// The adapter exposes only the primitives the services rely on (hashes,
// strings with TTL, sets, pattern scans, SetNX, HIncrBy). Multi-key
// transactions are deliberately absent: the services sequence their mutations
// so that a crash between steps leaves recoverable state.
package kvstore
