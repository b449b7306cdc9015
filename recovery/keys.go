package recovery

import "github.com/vigilkey/vigil-backend/interfaces"

// Store key layout. The owner→guardians direction is served by the config
// record; the guardian→owners direction by a key scan over the share records.
// The relation is bipartite and queried one side at a time, so no graph is
// ever materialized.
func configKey(owner interfaces.Pubkey) string {
	return "recovery:config:" + owner.String()
}

func shareKey(guardian, owner interfaces.Pubkey) string {
	return "recovery:share:" + guardian.String() + ":" + owner.String()
}

func shareScanPattern(guardian interfaces.Pubkey) string {
	return "recovery:share:" + guardian.String() + ":*"
}

func sessionKey(id interfaces.SessionID) string {
	return "recovery:session:" + id.String()
}

func sessionShareKey(id interfaces.SessionID, guardian interfaces.Pubkey) string {
	return "recovery:session:" + id.String() + ":share:" + guardian.String()
}
