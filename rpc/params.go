package rpc

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/native/escrow"
)

// orderParams is the wire form of an escrow order. Terms are 0x-prefixed hex.
type orderParams struct {
	Nonce        uint64 `json:"nonce"`
	Issuer       string `json:"issuer,omitempty"`
	Counterparty string `json:"counterparty"`
	Terms        string `json:"terms,omitempty"`
	Expiry       uint64 `json:"expiry"`
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseAmount accepts a base-10 integer or a 0x-prefixed hex quantity.
func parseAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		out, err := uint256.FromHex(trimmed)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		return out, nil
	}
	out, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return out, nil
}

func parseID(value string) (escrow.Identity, error) {
	if strings.TrimSpace(value) == "" {
		return escrow.Identity{}, fmt.Errorf("id required")
	}
	return escrow.ParseIdentity(value)
}

func parseTerms(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	terms, err := hexutil.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("terms: %w", err)
	}
	return terms, nil
}

// toOrder converts wire params. An empty issuer defaults to fallback.
func (p orderParams) toOrder(fallback [20]byte) (escrow.Order, error) {
	order := escrow.Order{Nonce: p.Nonce, Expiry: p.Expiry, Issuer: fallback}
	if strings.TrimSpace(p.Issuer) != "" {
		issuer, err := parseAddress("issuer", p.Issuer)
		if err != nil {
			return escrow.Order{}, err
		}
		order.Issuer = issuer
	}
	counterparty, err := parseAddress("counterparty", p.Counterparty)
	if err != nil {
		return escrow.Order{}, err
	}
	order.Counterparty = counterparty
	terms, err := parseTerms(p.Terms)
	if err != nil {
		return escrow.Order{}, err
	}
	order.Terms = terms
	return order, nil
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
