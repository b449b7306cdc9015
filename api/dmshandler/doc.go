// Package dmshandler exposes the dead-man's switch scheduler over HTTP under
// /api/dms.
//
// Owner operations (create, check-in, cancel) are authenticated by detached
// Ed25519 signatures. The sweep endpoint is driven by an external scheduler
// and authenticated by a shared secret header compared in constant time; no
// user owns that call. Listings and release records are readable without
// authentication, by pubkey and unguessable switch id respectively.
package dmshandler
