// Package identity resolves recipient usernames to public encryption keys
// through the external identity registry.
//
// Two resolver implementations are provided: HTTPResolver speaks to a
// JSON lookup endpoint, and OnchainResolver reads the username registry
// contract directly through an Ethereum RPC. ResolverFor picks one from the
// configured endpoint URI. MockResolver lives beside them for tests.
//
// The core has no opinion about the registry beyond this lookup; key
// registration and updates happen elsewhere.
package identity
