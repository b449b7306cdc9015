// Package interfaces defines the shared domain types, record schemas, and
// service contracts used across the Vigil backend.
//
// The package contains no business logic. It provides:
//
//   - Validated identifier types (Pubkey, Ciphertext, Username, SessionID,
//     SwitchID) with constructors that reject malformed input at the boundary.
//
//   - Record types for everything persisted in the key-value store
//     (RecoveryConfig, GuardianShare, RecoverySession, DMSSwitch,
//     ReleaseRecord) together with their hash-field codecs. Hash values come
//     out of the store as untyped string maps; each record type owns a parser
//     that coerces numeric fields and rejects missing required fields.
//
//   - Service contracts (KVStore, IdentityResolver, BlobStore,
//     RecoveryOrchestrator, SwitchScheduler) that decouple HTTP handlers from
//     implementations and let tests substitute in-memory fakes.
//
//   - Sentinel errors shared by all components, mapped to HTTP status codes
//     at the API boundary only.
package interfaces
