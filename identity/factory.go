package identity

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// ResolverFor creates an identity resolver from the configured lookup
// endpoint URI.
//
// Supported forms:
//   - http://host[:port][/path] or https://... - JSON lookup endpoint
//   - onchain://<contract-address>?rpc=<rpc-url> - registry contract read
func ResolverFor(endpoint string, log *slog.Logger) (interfaces.IdentityResolver, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid identity lookup endpoint: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPResolver(strings.TrimSuffix(endpoint, "/"), log), nil
	case "onchain":
		if !common.IsHexAddress(u.Host) {
			return nil, fmt.Errorf("invalid registry contract address: %s", u.Host)
		}
		rpcURL := u.Query().Get("rpc")
		if rpcURL == "" {
			return nil, fmt.Errorf("onchain resolver requires an rpc query parameter")
		}
		return NewOnchainResolver(rpcURL, common.HexToAddress(u.Host), log)
	default:
		return nil, fmt.Errorf("unsupported identity resolver scheme: %s", u.Scheme)
	}
}
