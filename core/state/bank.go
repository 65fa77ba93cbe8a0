package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
	supplyPrefix    = []byte("bank/supply/")
)

func balanceKey(asset, owner [20]byte) []byte {
	return hashedKey(balancePrefix, asset[:], owner[:])
}

func allowanceKey(asset, owner, spender [20]byte) []byte {
	return hashedKey(allowancePrefix, asset[:], owner[:], spender[:])
}

func supplyKey(asset [20]byte) []byte {
	return hashedKey(supplyPrefix, asset[:])
}

func (m *Manager) putAmount(key []byte, amount *uint256.Int) error {
	value := big.NewInt(0)
	if amount != nil {
		value = amount.ToBig()
	}
	return m.put(key, value)
}

func (m *Manager) getAmount(key []byte) (*uint256.Int, error) {
	stored := new(big.Int)
	ok, err := m.get(key, stored)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	if !ok {
		return out, nil
	}
	if overflow := out.SetFromBig(stored); overflow {
		return nil, fmt.Errorf("state: stored amount overflows 256 bits")
	}
	return out, nil
}

// SetBalance stores the balance of owner in asset.
func (m *Manager) SetBalance(asset, owner [20]byte, amount *uint256.Int) error {
	return m.putAmount(balanceKey(asset, owner), amount)
}

// Balance returns the balance of owner in asset. Missing balances are zero.
func (m *Manager) Balance(asset, owner [20]byte) (*uint256.Int, error) {
	return m.getAmount(balanceKey(asset, owner))
}

// SetAllowance stores how much of owner's asset spender may move.
func (m *Manager) SetAllowance(asset, owner, spender [20]byte, amount *uint256.Int) error {
	return m.putAmount(allowanceKey(asset, owner, spender), amount)
}

// Allowance returns the amount spender may move from owner's asset balance.
func (m *Manager) Allowance(asset, owner, spender [20]byte) (*uint256.Int, error) {
	return m.getAmount(allowanceKey(asset, owner, spender))
}

// SetTotalSupply stores the minted supply of asset.
func (m *Manager) SetTotalSupply(asset [20]byte, amount *uint256.Int) error {
	return m.putAmount(supplyKey(asset), amount)
}

// TotalSupply returns the minted supply of asset.
func (m *Manager) TotalSupply(asset [20]byte) (*uint256.Int, error) {
	return m.getAmount(supplyKey(asset))
}
