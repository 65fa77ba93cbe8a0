package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/native/escrow"
)

var escrowRecordPrefix = []byte("escrow/record/")

func escrowStorageKey(id escrow.Identity) []byte {
	return hashedKey(escrowRecordPrefix, id[:])
}

type storedEscrow struct {
	ID        [32]byte
	Asset     [20]byte
	Amount    *big.Int
	Issuer    [20]byte
	Settled   bool
	IssuedAt  *big.Int
	SettledAt *big.Int
}

func newStoredEscrow(rec *escrow.Record) *storedEscrow {
	amount := big.NewInt(0)
	if rec.Principal.Amount != nil {
		amount = rec.Principal.Amount.ToBig()
	}
	return &storedEscrow{
		ID:        rec.ID,
		Asset:     rec.Principal.Asset,
		Amount:    amount,
		Issuer:    rec.Issuer,
		Settled:   rec.Settled,
		IssuedAt:  big.NewInt(rec.IssuedAt),
		SettledAt: big.NewInt(rec.SettledAt),
	}
}

func (s *storedEscrow) toRecord() (*escrow.Record, error) {
	amount := new(uint256.Int)
	if s.Amount != nil {
		if overflow := amount.SetFromBig(s.Amount); overflow {
			return nil, fmt.Errorf("escrow: stored amount overflows 256 bits")
		}
	}
	rec := &escrow.Record{
		ID:        escrow.Identity(s.ID),
		Principal: escrow.Principal{Amount: amount, Asset: s.Asset},
		Issuer:    s.Issuer,
		Settled:   s.Settled,
	}
	if s.IssuedAt != nil {
		rec.IssuedAt = s.IssuedAt.Int64()
	}
	if s.SettledAt != nil {
		rec.SettledAt = s.SettledAt.Int64()
	}
	return rec, nil
}

// EscrowPut persists the escrow record.
func (m *Manager) EscrowPut(rec *escrow.Record) error {
	if rec == nil {
		return fmt.Errorf("escrow: nil record")
	}
	return m.put(escrowStorageKey(rec.ID), newStoredEscrow(rec))
}

// EscrowGet retrieves the escrow record for id. The boolean reports whether a
// record exists.
func (m *Manager) EscrowGet(id escrow.Identity) (*escrow.Record, bool, error) {
	var stored storedEscrow
	ok, err := m.get(escrowStorageKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := stored.toRecord()
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}
