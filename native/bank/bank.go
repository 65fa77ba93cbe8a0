package bank

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/native/common"
)

// ModuleName is the pause-guard key for the bank.
const ModuleName = "bank"

var (
	// ErrInsufficientBalance is returned when the source cannot cover a move.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInsufficientAllowance is returned when a spender exceeds its approval.
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	// ErrInvalidAmount is returned for nil amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")
	// ErrZeroAddress is returned when an asset or recipient is unset.
	ErrZeroAddress = errors.New("bank: zero address")
	// ErrSupplyOverflow is returned when a mint would exceed 256 bits.
	ErrSupplyOverflow = errors.New("bank: supply overflow")

	errNilState = errors.New("bank: state not configured")
)

type ledgerState interface {
	Balance(asset, owner [20]byte) (*uint256.Int, error)
	SetBalance(asset, owner [20]byte, amount *uint256.Int) error
	Allowance(asset, owner, spender [20]byte) (*uint256.Int, error)
	SetAllowance(asset, owner, spender [20]byte, amount *uint256.Int) error
	TotalSupply(asset [20]byte) (*uint256.Int, error)
	SetTotalSupply(asset [20]byte, amount *uint256.Int) error
}

// Ledger keeps fungible balances per asset address with ERC-20 style
// allowances. Every operation either applies fully or not at all.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
	pauses  common.PauseView
}

// NewLedger creates a ledger backed by state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil disables events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses configures the pause view checked before every write.
func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return common.Guard(l.pauses, ModuleName)
}

func validate(asset [20]byte, amount *uint256.Int) error {
	if asset == ([20]byte{}) {
		return fmt.Errorf("%w: asset", ErrZeroAddress)
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits amount of asset to the recipient.
func (l *Ledger) Mint(asset, to [20]byte, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(asset, amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	supply, err := l.state.TotalSupply(asset)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	balance, err := l.state.Balance(asset, to)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(asset, to, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := l.state.SetTotalSupply(asset, newSupply); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: asset, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// BalanceOf returns the balance of owner in asset.
func (l *Ledger) BalanceOf(asset, owner [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Balance(asset, owner)
}

// TotalSupply returns the minted supply of asset.
func (l *Ledger) TotalSupply(asset [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.TotalSupply(asset)
}

// Approve sets the amount spender may move from owner's balance, replacing any
// previous approval.
func (l *Ledger) Approve(asset, owner, spender [20]byte, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(asset, amount); err != nil {
		return err
	}
	if spender == ([20]byte{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	return l.state.SetAllowance(asset, owner, spender, amount)
}

// Allowance returns the remaining approval of spender over owner's asset.
func (l *Ledger) Allowance(asset, owner, spender [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Allowance(asset, owner, spender)
}

// Transfer moves amount of asset from one account to another.
func (l *Ledger) Transfer(asset, from, to [20]byte, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(asset, amount); err != nil {
		return err
	}
	return l.move(asset, from, to, amount)
}

// TransferFrom moves amount of asset from one account to another on behalf of
// spender, consuming spender's allowance. A spender moving its own funds needs
// no allowance.
func (l *Ledger) TransferFrom(asset, spender, from, to [20]byte, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := validate(asset, amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if spender == from {
		return l.move(asset, from, to, amount)
	}
	allowance, err := l.state.Allowance(asset, from, spender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	balance, err := l.state.Balance(asset, from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	if err := l.state.SetAllowance(asset, from, spender, new(uint256.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	return l.move(asset, from, to, amount)
}

func (l *Ledger) move(asset, from, to [20]byte, amount *uint256.Int) error {
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	fromBalance, err := l.state.Balance(asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	if from != to {
		toBalance, err := l.state.Balance(asset, to)
		if err != nil {
			return err
		}
		if err := l.state.SetBalance(asset, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.state.SetBalance(asset, to, new(uint256.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.Transfer{Asset: asset, From: from, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}
