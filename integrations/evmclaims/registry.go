package evmclaims

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/punnkam/private-lending/native/escrow"
)

const claimABI = `[
  {"type":"function","name":"isClaimed","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]}
]`

const defaultTimeout = 5 * time.Second

// Caller is the subset of the Ethereum RPC used by the registry.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial initialises an EVM RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evmclaims: endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Registry answers escrow.ClaimRegistry queries from an ERC-721 style
// contract. The escrow identity is the token id read as a big-endian uint256.
type Registry struct {
	client   Caller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

var _ escrow.ClaimRegistry = (*Registry)(nil)

// NewRegistry binds the registry to contract. A zero timeout selects the
// default of five seconds per call.
func NewRegistry(client Caller, contract common.Address, timeout time.Duration) (*Registry, error) {
	if client == nil {
		return nil, fmt.Errorf("evmclaims: client required")
	}
	if contract == (common.Address{}) {
		return nil, fmt.Errorf("evmclaims: contract address required")
	}
	parsed, err := abi.JSON(strings.NewReader(claimABI))
	if err != nil {
		return nil, fmt.Errorf("evmclaims: parse abi: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Registry{client: client, contract: contract, abi: parsed, timeout: timeout}, nil
}

// TokenID converts an escrow identity into the contract's token id.
func TokenID(id escrow.Identity) *big.Int {
	return new(big.Int).SetBytes(id[:])
}

func (r *Registry) call(method string, id escrow.Identity) ([]interface{}, error) {
	input, err := r.abi.Pack(method, TokenID(id))
	if err != nil {
		return nil, fmt.Errorf("evmclaims: pack %s: %w", method, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	contract := r.contract
	output, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("evmclaims: call %s: %w", method, err)
	}
	values, err := r.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("evmclaims: unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("evmclaims: %s returned %d values", method, len(values))
	}
	return values, nil
}

// IsClaimed implements escrow.ClaimRegistry.
func (r *Registry) IsClaimed(id escrow.Identity) (bool, error) {
	values, err := r.call("isClaimed", id)
	if err != nil {
		return false, err
	}
	claimed, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("evmclaims: isClaimed returned %T", values[0])
	}
	return claimed, nil
}

// OwnerOf implements escrow.ClaimRegistry.
func (r *Registry) OwnerOf(id escrow.Identity) ([20]byte, error) {
	values, err := r.call("ownerOf", id)
	if err != nil {
		return [20]byte{}, err
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return [20]byte{}, fmt.Errorf("evmclaims: ownerOf returned %T", values[0])
	}
	return owner, nil
}
