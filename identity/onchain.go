package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mr-tron/base58"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// registryABI is the read surface of the username registry contract: one view
// mapping a username to the registered 32-byte encryption key, zero when the
// username is unclaimed.
const registryABI = `[{"name":"lookup","type":"function","stateMutability":"view","inputs":[{"name":"username","type":"string"}],"outputs":[{"name":"key","type":"bytes32"}]}]`

// OnchainResolver reads the username registry contract directly through an
// Ethereum RPC endpoint.
type OnchainResolver struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	log      *slog.Logger
}

// NewOnchainResolver connects to the RPC endpoint and binds the registry
// contract address.
func NewOnchainResolver(rpcURL string, contract common.Address, log *slog.Logger) (*OnchainResolver, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing registry RPC: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parsing registry ABI: %w", err)
	}

	return &OnchainResolver{
		client:   client,
		contract: contract,
		abi:      parsed,
		log:      log,
	}, nil
}

// Resolve calls the registry's lookup view. An all-zero key means the
// username is unclaimed and maps to ErrUnknownUsername.
func (r *OnchainResolver) Resolve(ctx context.Context, username interfaces.Username) (interfaces.Pubkey, error) {
	input, err := r.abi.Pack("lookup", username.String())
	if err != nil {
		return "", fmt.Errorf("packing lookup call: %w", err)
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.contract,
		Data: input,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: registry call: %v", interfaces.ErrBackendUnavailable, err)
	}

	results, err := r.abi.Unpack("lookup", output)
	if err != nil {
		return "", fmt.Errorf("unpacking lookup result: %w", err)
	}
	key, ok := results[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("unexpected lookup result type %T", results[0])
	}
	if key == [32]byte{} {
		return "", interfaces.ErrUnknownUsername
	}

	r.log.Debug("Resolved username onchain", "username", username.String())
	return interfaces.Pubkey(base58.Encode(key[:])), nil
}

// Close releases the RPC connection.
func (r *OnchainResolver) Close() {
	r.client.Close()
}
