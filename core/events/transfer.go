package events

import (
	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/core/types"
)

const (
	// TypeTransfer is emitted for every fungible balance movement, including
	// mints (zero sender).
	TypeTransfer = "bank.transfer"
)

type Transfer struct {
	Asset  [20]byte
	From   [20]byte
	To     [20]byte
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"asset":  formatAddress(e.Asset),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}
	if e.From != ([20]byte{}) {
		attrs["from"] = formatAddress(e.From)
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
