package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/native/common"
)

// ModuleName is the pause-guard key for the escrow ledger.
const ModuleName = "escrow"

type engineState interface {
	EscrowPut(*Record) error
	EscrowGet(id Identity) (*Record, bool, error)
}

// AssetTransfer moves fungible assets on behalf of the ledger. TransferFrom
// pulls from a depositor into custody; Transfer releases from custody. A
// non-nil error means no effect occurred.
type AssetTransfer interface {
	TransferFrom(asset, from, to [20]byte, amount *uint256.Int) error
	Transfer(asset, to [20]byte, amount *uint256.Int) error
}

// ClaimRegistry reports who currently holds the claim for an identity.
type ClaimRegistry interface {
	IsClaimed(id Identity) (bool, error)
	OwnerOf(id Identity) ([20]byte, error)
}

// Operation names reported to the Observer.
const (
	OpIssue  = "issue"
	OpSettle = "settle"
)

// Outcome classifies how an operation ended, including the silent paths that
// callers cannot distinguish.
type Outcome string

const (
	OutcomeIssued         Outcome = "issued"
	OutcomeSettled        Outcome = "settled"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeTransferFailed Outcome = "transfer_failed"
	OutcomePaused         Outcome = "paused"
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomeUnknown        Outcome = "unknown"
	OutcomeNotClaimed     Outcome = "not_claimed"
	OutcomeUnauthorized   Outcome = "unauthorized"
	OutcomeInFlight       Outcome = "in_flight"
	OutcomeError          Outcome = "error"
	// OutcomeUnrecorded marks a release that moved funds but could not be
	// stored. The engine refuses further releases for the identity.
	OutcomeUnrecorded Outcome = "unrecorded"
)

// Observer receives the outcome of every Issue and Settle call.
type Observer interface {
	Observe(op string, id Identity, outcome Outcome)
}

type noopObserver struct{}

func (noopObserver) Observe(string, Identity, Outcome) {}

// Engine is the escrow ledger. It owns every record and is the only component
// that moves assets out of custody. Engine performs no locking; the host must
// serialise calls against one engine.
type Engine struct {
	state    engineState
	transfer AssetTransfer
	claims   ClaimRegistry
	emitter  events.Emitter
	observer Observer
	pauses   common.PauseView
	custody  [20]byte
	nowFn    func() int64

	// identities with an external transfer in progress
	inflight map[Identity]struct{}
	// identities paid out whose settled flag has not reached the store yet
	released map[Identity]pendingRelease
}

type pendingRelease struct {
	rec   *Record
	event events.EscrowSettled
}

// NewEngine creates an escrow engine with a no-op emitter and observer.
// Callers configure state and collaborators before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		observer: noopObserver{},
		nowFn:    func() int64 { return time.Now().Unix() },
		inflight: make(map[Identity]struct{}),
		released: make(map[Identity]pendingRelease),
	}
}

// SetState configures the record store used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransfer configures the asset transfer collaborator and the custody
// address deposits are pulled into.
func (e *Engine) SetTransfer(transfer AssetTransfer, custody [20]byte) {
	e.transfer = transfer
	e.custody = custody
}

// SetClaims configures the claim registry consulted at settlement.
func (e *Engine) SetClaims(claims ClaimRegistry) { e.claims = claims }

// SetPauses configures the pause view checked before every write.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetObserver configures the outcome observer. Passing nil disables it.
func (e *Engine) SetObserver(observer Observer) {
	if observer == nil {
		e.observer = noopObserver{}
		return
	}
	e.observer = observer
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Custody returns the address holding escrowed principals.
func (e *Engine) Custody() [20]byte { return e.custody }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.transfer == nil || e.claims == nil {
		return errNilCollaborator
	}
	return nil
}

func (e *Engine) loadRecord(id Identity) (*Record, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	if pending, ok := e.released[id]; ok {
		return pending.rec.Clone(), true, nil
	}
	rec, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, false, fmt.Errorf("escrow: load record: %w", err)
	}
	return rec, ok, nil
}

// Issue locks principal in custody against the identity of order. The caller
// is the depositor. When the deposit transfer fails the call returns the
// computed identity with a nil error but stores nothing and emits nothing.
func (e *Engine) Issue(caller [20]byte, principal Principal, order Order) (Identity, error) {
	if err := e.ready(); err != nil {
		return Identity{}, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		e.observer.Observe(OpIssue, Identity{}, OutcomePaused)
		return Identity{}, err
	}
	if order.Nonce == 0 {
		e.observer.Observe(OpIssue, Identity{}, OutcomeInvalid)
		return Identity{}, fmt.Errorf("%w: nonce must be non-zero", ErrInvalidOrder)
	}
	if principal.Amount == nil {
		e.observer.Observe(OpIssue, Identity{}, OutcomeInvalid)
		return Identity{}, fmt.Errorf("%w: principal amount required", ErrInvalidOrder)
	}
	id, err := ComputeIdentity(order)
	if err != nil {
		e.observer.Observe(OpIssue, Identity{}, OutcomeError)
		return Identity{}, err
	}
	_, exists, err := e.loadRecord(id)
	if err != nil {
		e.observer.Observe(OpIssue, id, OutcomeError)
		return Identity{}, err
	}
	if exists {
		e.observer.Observe(OpIssue, id, OutcomeDuplicate)
		return Identity{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, id)
	}
	if _, busy := e.inflight[id]; busy {
		e.observer.Observe(OpIssue, id, OutcomeDuplicate)
		return Identity{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, id)
	}

	locked := principal.Clone()
	e.inflight[id] = struct{}{}
	defer delete(e.inflight, id)

	if err := e.transfer.TransferFrom(locked.Asset, caller, e.custody, locked.Amount); err != nil {
		e.observer.Observe(OpIssue, id, OutcomeTransferFailed)
		return id, nil
	}

	rec := &Record{
		ID:        id,
		Principal: locked,
		Issuer:    caller,
		IssuedAt:  e.nowFn(),
	}
	if err := e.state.EscrowPut(rec); err != nil {
		e.observer.Observe(OpIssue, id, OutcomeError)
		if refundErr := e.transfer.Transfer(locked.Asset, caller, locked.Amount); refundErr != nil {
			return Identity{}, fmt.Errorf("escrow: store record: %w (refund failed: %v)", err, refundErr)
		}
		return Identity{}, fmt.Errorf("escrow: store record: %w", err)
	}
	e.emitter.Emit(events.EscrowIssued{
		ID:     id,
		Issuer: caller,
		Asset:  locked.Asset,
		Amount: new(uint256.Int).Set(locked.Amount),
	})
	e.observer.Observe(OpIssue, id, OutcomeIssued)
	return id, nil
}

// Settle releases the principal for id to the current claim owner when the
// caller is that owner. Unknown, unclaimed and unauthorised attempts, as well
// as failed release transfers, return nil without changing state. Settling an
// already settled identity returns ErrAlreadySettled.
func (e *Engine) Settle(caller [20]byte, id Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		e.observer.Observe(OpSettle, id, OutcomePaused)
		return err
	}
	rec, ok, err := e.loadRecord(id)
	if err != nil {
		e.observer.Observe(OpSettle, id, OutcomeError)
		return err
	}
	if !ok {
		e.observer.Observe(OpSettle, id, OutcomeUnknown)
		return nil
	}
	if rec.Settled {
		e.flushReleased(id)
		e.observer.Observe(OpSettle, id, OutcomeAlreadySettled)
		return fmt.Errorf("%w: %s", ErrAlreadySettled, id)
	}
	if _, busy := e.inflight[id]; busy {
		e.observer.Observe(OpSettle, id, OutcomeInFlight)
		return nil
	}

	claimed, err := e.claims.IsClaimed(id)
	if err != nil || !claimed {
		e.observer.Observe(OpSettle, id, OutcomeNotClaimed)
		return nil
	}
	owner, err := e.claims.OwnerOf(id)
	if err != nil || owner != caller {
		e.observer.Observe(OpSettle, id, OutcomeUnauthorized)
		return nil
	}

	e.inflight[id] = struct{}{}
	defer delete(e.inflight, id)

	amount := new(uint256.Int).Set(rec.Principal.Amount)
	if err := e.transfer.Transfer(rec.Principal.Asset, owner, amount); err != nil {
		e.observer.Observe(OpSettle, id, OutcomeTransferFailed)
		return nil
	}

	rec.Settled = true
	rec.SettledAt = e.nowFn()
	settled := events.EscrowSettled{
		ID:     id,
		Owner:  owner,
		Asset:  rec.Principal.Asset,
		Amount: amount,
	}
	if err := e.state.EscrowPut(rec); err != nil {
		// The payout already happened. Hold the settled record in memory so
		// the principal cannot be released again.
		e.released[id] = pendingRelease{rec: rec.Clone(), event: settled}
		e.observer.Observe(OpSettle, id, OutcomeUnrecorded)
		return fmt.Errorf("escrow: store record: %w", err)
	}
	e.emitter.Emit(settled)
	e.observer.Observe(OpSettle, id, OutcomeSettled)
	return nil
}

// flushReleased retries the store for a settled record held in memory after
// an earlier write failure. The Settled event is emitted once the write lands.
func (e *Engine) flushReleased(id Identity) {
	pending, ok := e.released[id]
	if !ok {
		return
	}
	if err := e.state.EscrowPut(pending.rec); err != nil {
		return
	}
	delete(e.released, id)
	e.emitter.Emit(pending.event)
}

// IsSettled reports whether id has been settled. Unknown identities report
// false; use Status or GetPrincipal to tell them apart from pending ones.
func (e *Engine) IsSettled(id Identity) (bool, error) {
	rec, ok, err := e.loadRecord(id)
	if err != nil || !ok {
		return false, err
	}
	return rec.Settled, nil
}

// GetPrincipal returns the principal locked against id.
func (e *Engine) GetPrincipal(id Identity) (Principal, error) {
	rec, err := e.Record(id)
	if err != nil {
		return Principal{}, err
	}
	return rec.Principal, nil
}

// Record returns a copy of the full record for id.
func (e *Engine) Record(id Identity) (*Record, error) {
	rec, ok, err := e.loadRecord(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	return rec.Clone(), nil
}

// Status returns the tri-state view of id.
func (e *Engine) Status(id Identity) (Status, error) {
	rec, ok, err := e.loadRecord(id)
	if err != nil {
		return StatusUnknown, err
	}
	switch {
	case !ok:
		return StatusUnknown, nil
	case rec.Settled:
		return StatusSettled, nil
	default:
		return StatusPending, nil
	}
}

// IsRejection reports whether err is one of the ledger's explicit precondition
// failures, as opposed to an infrastructure fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrDuplicateOrder) ||
		errors.Is(err, ErrUnknownOrder) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, common.ErrModulePaused)
}
