package bank

import (
	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/native/escrow"
)

// Custody adapts the ledger to escrow.AssetTransfer for a vault address. The
// vault spends depositor allowances on TransferFrom and pays out of its own
// balance on Transfer.
type Custody struct {
	ledger *Ledger
	vault  [20]byte
}

var _ escrow.AssetTransfer = (*Custody)(nil)

// NewCustody binds the ledger to vault.
func NewCustody(ledger *Ledger, vault [20]byte) *Custody {
	return &Custody{ledger: ledger, vault: vault}
}

// Vault returns the custody address.
func (c *Custody) Vault() [20]byte { return c.vault }

// TransferFrom implements escrow.AssetTransfer.
func (c *Custody) TransferFrom(asset, from, to [20]byte, amount *uint256.Int) error {
	return c.ledger.TransferFrom(asset, c.vault, from, to, amount)
}

// Transfer implements escrow.AssetTransfer.
func (c *Custody) Transfer(asset, to [20]byte, amount *uint256.Int) error {
	return c.ledger.Transfer(asset, c.vault, to, amount)
}
