package escrow

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ComputeIdentity hashes the canonical RLP encoding of the order. Orders with
// identical content always map to the same identity.
func ComputeIdentity(order Order) (Identity, error) {
	encoded, err := rlp.EncodeToBytes(&order)
	if err != nil {
		return Identity{}, fmt.Errorf("escrow: encode order: %w", err)
	}
	return Identity(ethcrypto.Keccak256Hash(encoded)), nil
}
