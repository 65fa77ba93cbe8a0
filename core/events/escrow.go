package events

import (
	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/core/types"
)

const (
	TypeEscrowIssued  = "escrow.issued"
	TypeEscrowSettled = "escrow.settled"
)

// EscrowIssued is emitted exactly once when a principal has been moved into
// custody and the escrow record for the identity has been created.
type EscrowIssued struct {
	ID     [32]byte
	Issuer [20]byte
	Asset  [20]byte
	Amount *uint256.Int
}

func (EscrowIssued) EventType() string { return TypeEscrowIssued }

func (e EscrowIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowIssued,
		Attributes: map[string]string{
			"id":     formatID(e.ID),
			"issuer": formatAddress(e.Issuer),
			"asset":  formatAddress(e.Asset),
			"amount": formatAmount(e.Amount),
		},
	}
}

// EscrowSettled is emitted exactly once when the principal has been released
// to the claim owner.
type EscrowSettled struct {
	ID     [32]byte
	Owner  [20]byte
	Asset  [20]byte
	Amount *uint256.Int
}

func (EscrowSettled) EventType() string { return TypeEscrowSettled }

func (e EscrowSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowSettled,
		Attributes: map[string]string{
			"id":     formatID(e.ID),
			"owner":  formatAddress(e.Owner),
			"asset":  formatAddress(e.Asset),
			"amount": formatAmount(e.Amount),
		},
	}
}
