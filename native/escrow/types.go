package escrow

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Identity is the keccak256 content hash of an order. It is the primary key of
// every escrow record.
type Identity [32]byte

// Hex renders the identity as a 0x-prefixed lowercase hex string.
func (id Identity) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

func (id Identity) String() string { return id.Hex() }

// ParseIdentity decodes a 0x-prefixed (or bare) 64 character hex string.
func ParseIdentity(value string) (Identity, error) {
	var id Identity
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 64 {
		return id, fmt.Errorf("escrow: identity must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("escrow: decode identity: %w", err)
	}
	copy(id[:], decoded)
	return id, nil
}

// Order is the condition payload agreed between issuer and counterparty. The
// ledger never interprets it beyond hashing; every field participates in the
// identity. Nonce disambiguates otherwise identical orders and must be
// non-zero.
type Order struct {
	Nonce        uint64
	Issuer       [20]byte
	Counterparty [20]byte
	Terms        []byte
	Expiry       uint64
}

// Principal describes what is locked: an amount of a fungible asset.
type Principal struct {
	Amount *uint256.Int
	Asset  [20]byte
}

// Clone returns a deep copy of the principal.
func (p Principal) Clone() Principal {
	out := Principal{Asset: p.Asset, Amount: new(uint256.Int)}
	if p.Amount != nil {
		out.Amount.Set(p.Amount)
	}
	return out
}

// Equal reports whether both principals lock the same amount of the same asset.
func (p Principal) Equal(other Principal) bool {
	if p.Asset != other.Asset {
		return false
	}
	a, b := p.Amount, other.Amount
	if a == nil {
		a = new(uint256.Int)
	}
	if b == nil {
		b = new(uint256.Int)
	}
	return a.Eq(b)
}

// Record is the ledger's entry for one issued identity. Only Settled and
// SettledAt ever change after creation, and only once.
type Record struct {
	ID        Identity
	Principal Principal
	Issuer    [20]byte
	Settled   bool
	IssuedAt  int64
	SettledAt int64
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Principal = r.Principal.Clone()
	return &clone
}

// Status is the tri-state view of an identity.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}
