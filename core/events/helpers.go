package events

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/crypto"
)

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func formatAddress(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}
