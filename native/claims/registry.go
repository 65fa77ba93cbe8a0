package claims

import (
	"errors"
	"fmt"

	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/native/common"
	"github.com/punnkam/private-lending/native/escrow"
)

// ModuleName is the pause-guard key for the claim registry.
const ModuleName = "claims"

var (
	// ErrAlreadyMinted is returned when minting an identity that has an owner.
	ErrAlreadyMinted = errors.New("claims: already minted")
	// ErrNotOwner is returned when the caller does not hold the claim.
	ErrNotOwner = errors.New("claims: not owner")
	// ErrNotFound is returned for identities without a claim.
	ErrNotFound = errors.New("claims: not found")
	// ErrZeroAddress is returned when the recipient is unset.
	ErrZeroAddress = errors.New("claims: zero address")

	errNilState = errors.New("claims: state not configured")
)

type registryState interface {
	SetClaimOwner(id [32]byte, owner [20]byte) error
	ClearClaimOwner(id [32]byte) error
	ClaimOwner(id [32]byte) ([20]byte, bool, error)
}

// Registry tracks one transferable claim token per escrow identity.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  common.PauseView
}

var _ escrow.ClaimRegistry = (*Registry)(nil)

// NewRegistry creates a registry backed by state.
func NewRegistry(state registryState) *Registry {
	return &Registry{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil disables events.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses configures the pause view checked before every write.
func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	return common.Guard(r.pauses, ModuleName)
}

// Mint assigns the claim for id to the recipient.
func (r *Registry) Mint(id escrow.Identity, to [20]byte) error {
	if err := r.ready(); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	_, exists, err := r.state.ClaimOwner(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, id)
	}
	if err := r.state.SetClaimOwner(id, to); err != nil {
		return err
	}
	r.emitter.Emit(events.ClaimMinted{ID: id, Owner: to})
	return nil
}

func (r *Registry) requireOwner(id escrow.Identity, caller [20]byte) error {
	owner, exists, err := r.state.ClaimOwner(id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if owner != caller {
		return fmt.Errorf("%w: %s", ErrNotOwner, id)
	}
	return nil
}

// Transfer hands the claim for id from its current owner to another account.
func (r *Registry) Transfer(id escrow.Identity, from, to [20]byte) error {
	if err := r.ready(); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if err := r.requireOwner(id, from); err != nil {
		return err
	}
	if err := r.state.SetClaimOwner(id, to); err != nil {
		return err
	}
	r.emitter.Emit(events.ClaimTransferred{ID: id, From: from, To: to})
	return nil
}

// Burn destroys the claim for id. The identity may be minted again later.
func (r *Registry) Burn(id escrow.Identity, owner [20]byte) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.requireOwner(id, owner); err != nil {
		return err
	}
	if err := r.state.ClearClaimOwner(id); err != nil {
		return err
	}
	r.emitter.Emit(events.ClaimBurned{ID: id, Owner: owner})
	return nil
}

// IsClaimed implements escrow.ClaimRegistry.
func (r *Registry) IsClaimed(id escrow.Identity) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	_, exists, err := r.state.ClaimOwner(id)
	return exists, err
}

// OwnerOf implements escrow.ClaimRegistry.
func (r *Registry) OwnerOf(id escrow.Identity) ([20]byte, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, errNilState
	}
	owner, exists, err := r.state.ClaimOwner(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !exists {
		return [20]byte{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return owner, nil
}
