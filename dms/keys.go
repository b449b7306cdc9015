package dms

import "github.com/vigilkey/vigil-backend/interfaces"

// Store key layout. The active set exists so the sweep touches only active
// switches instead of scanning the whole keyspace; the per-user set holds the
// owner's active and triggered switches (cancel removes the id from it).
// History listings read the switch records, not either set.
const (
	activeIndexKey    = "dms:active"
	switchKeyPrefix   = "dms:switch:"
	switchScanPattern = "dms:switch:*"
)

func switchKey(id interfaces.SwitchID) string {
	return switchKeyPrefix + id.String()
}

func userIndexKey(owner interfaces.Pubkey) string {
	return "dms:user:" + owner.String()
}

func releaseKey(id interfaces.SwitchID) string {
	return "dms:release:" + id.String()
}

func fallbackPayloadKey(localID string) string {
	return "dms:" + localID
}
