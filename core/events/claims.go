package events

import "github.com/punnkam/private-lending/core/types"

const (
	TypeClaimMinted      = "claim.minted"
	TypeClaimTransferred = "claim.transferred"
	TypeClaimBurned      = "claim.burned"
)

type ClaimMinted struct {
	ID    [32]byte
	Owner [20]byte
}

func (ClaimMinted) EventType() string { return TypeClaimMinted }

func (e ClaimMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeClaimMinted,
		Attributes: map[string]string{
			"id":    formatID(e.ID),
			"owner": formatAddress(e.Owner),
		},
	}
}

type ClaimTransferred struct {
	ID   [32]byte
	From [20]byte
	To   [20]byte
}

func (ClaimTransferred) EventType() string { return TypeClaimTransferred }

func (e ClaimTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeClaimTransferred,
		Attributes: map[string]string{
			"id":   formatID(e.ID),
			"from": formatAddress(e.From),
			"to":   formatAddress(e.To),
		},
	}
}

type ClaimBurned struct {
	ID    [32]byte
	Owner [20]byte
}

func (ClaimBurned) EventType() string { return TypeClaimBurned }

func (e ClaimBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeClaimBurned,
		Attributes: map[string]string{
			"id":    formatID(e.ID),
			"owner": formatAddress(e.Owner),
		},
	}
}
