package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/punnkam/private-lending/core/events"
	nhbstate "github.com/punnkam/private-lending/core/state"
	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/native/bank"
	"github.com/punnkam/private-lending/native/claims"
	"github.com/punnkam/private-lending/native/common"
	"github.com/punnkam/private-lending/native/escrow"
	lendotel "github.com/punnkam/private-lending/observability/otel"
	"github.com/punnkam/private-lending/storage"
	"github.com/punnkam/private-lending/storage/eventlog"
)

// ErrExternalClaims is returned for claim writes when claim ownership is read
// from an external registry.
var ErrExternalClaims = errors.New("core: claims are managed by an external registry")

// ErrEventLogDisabled is returned by event queries when no event log is wired.
var ErrEventLogDisabled = errors.New("core: event log disabled")

// DefaultCustody is the vault address used when none is configured.
var DefaultCustody = func() [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("lending/escrow/custody"))[12:])
	return out
}()

// NodeOptions wires the collaborators of a Node. Only DB is required.
type NodeOptions struct {
	DB      storage.Database
	Custody [20]byte
	// Registry overrides the native claim registry, e.g. with an EVM backed one.
	Registry  escrow.ClaimRegistry
	EventLog  *eventlog.Log
	Emitters  []events.Emitter
	Observers []escrow.Observer
	Pauses    *common.Pauses
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Now       func() int64
}

// Node hosts the escrow ledger and its in-process collaborators. Every
// operation runs under one mutex so the engine, bank and registry observe a
// single serial history.
type Node struct {
	stateMu sync.Mutex

	db       storage.Database
	state    *nhbstate.Manager
	engine   *escrow.Engine
	bank     *bank.Ledger
	claims   *claims.Registry
	registry escrow.ClaimRegistry
	custody  [20]byte
	pauses   *common.Pauses
	eventLog *eventlog.Log
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewNode builds a node over opts.DB, stamping or verifying the state schema
// version.
func NewNode(opts NodeOptions) (*Node, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("core: database required")
	}
	manager := nhbstate.NewManager(opts.DB)
	if err := manager.EnsureStateVersion(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = lendotel.Tracer()
	}
	pauses := opts.Pauses
	if pauses == nil {
		pauses = common.NewPauses()
	}
	custody := opts.Custody
	if custody == ([20]byte{}) {
		custody = DefaultCustody
	}

	emitters := make(events.Multi, 0, len(opts.Emitters)+1)
	if opts.EventLog != nil {
		emitters = append(emitters, opts.EventLog)
	}
	emitters = append(emitters, opts.Emitters...)

	ledger := bank.NewLedger(manager)
	ledger.SetEmitter(emitters)
	ledger.SetPauses(pauses)

	native := claims.NewRegistry(manager)
	native.SetEmitter(emitters)
	native.SetPauses(pauses)

	var registry escrow.ClaimRegistry = native
	if opts.Registry != nil {
		registry = opts.Registry
	}

	observers := append([]escrow.Observer{&logObserver{logger: logger}}, opts.Observers...)

	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetTransfer(bank.NewCustody(ledger, custody), custody)
	engine.SetClaims(registry)
	engine.SetPauses(pauses)
	engine.SetEmitter(emitters)
	engine.SetObserver(multiObserver(observers))
	if opts.Now != nil {
		engine.SetNowFunc(opts.Now)
	}

	node := &Node{
		db:       opts.DB,
		state:    manager,
		engine:   engine,
		bank:     ledger,
		registry: registry,
		custody:  custody,
		pauses:   pauses,
		eventLog: opts.EventLog,
		logger:   logger,
		tracer:   tracer,
	}
	if opts.Registry == nil {
		node.claims = native
	}
	logger.Info("escrow node ready",
		slog.String("custody", crypto.FormatAddress(custody)),
		slog.Bool("external_claims", opts.Registry != nil))
	return node, nil
}

// Close releases the event log and database.
func (n *Node) Close() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var err error
	if n.eventLog != nil {
		err = n.eventLog.Close()
	}
	n.db.Close()
	return err
}

// Custody returns the vault address depositors approve.
func (n *Node) Custody() [20]byte { return n.custody }

// SetPaused pauses or resumes a module at runtime.
func (n *Node) SetPaused(module string, paused bool) {
	n.pauses.Set(module, paused)
	n.logger.Warn("module pause toggled", slog.String("module", module), slog.Bool("paused", paused))
}

// IsPaused reports whether module is paused.
func (n *Node) IsPaused(module string) bool { return n.pauses.IsPaused(module) }

func (n *Node) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return n.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EscrowIssue locks principal against order on behalf of caller.
func (n *Node) EscrowIssue(ctx context.Context, caller [20]byte, principal escrow.Principal, order escrow.Order) (escrow.Identity, error) {
	_, span := n.startSpan(ctx, "escrow.issue", attribute.String("caller", crypto.FormatAddress(caller)))
	n.stateMu.Lock()
	id, err := n.engine.Issue(caller, principal, order)
	n.stateMu.Unlock()
	span.SetAttributes(attribute.String("escrow.id", id.Hex()))
	endSpan(span, err)
	return id, err
}

// EscrowSettle releases id to caller when caller holds its claim.
func (n *Node) EscrowSettle(ctx context.Context, caller [20]byte, id escrow.Identity) error {
	_, span := n.startSpan(ctx, "escrow.settle",
		attribute.String("caller", crypto.FormatAddress(caller)),
		attribute.String("escrow.id", id.Hex()))
	n.stateMu.Lock()
	err := n.engine.Settle(caller, id)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// EscrowIdentity computes the identity an order would be issued under.
func (n *Node) EscrowIdentity(order escrow.Order) (escrow.Identity, error) {
	return escrow.ComputeIdentity(order)
}

// EscrowIsSettled reports whether id has been settled.
func (n *Node) EscrowIsSettled(id escrow.Identity) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.IsSettled(id)
}

// EscrowPrincipal returns the principal locked against id.
func (n *Node) EscrowPrincipal(id escrow.Identity) (escrow.Principal, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.GetPrincipal(id)
}

// EscrowRecord returns the full record for id.
func (n *Node) EscrowRecord(id escrow.Identity) (*escrow.Record, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Record(id)
}

// EscrowStatus returns the tri-state status of id.
func (n *Node) EscrowStatus(id escrow.Identity) (escrow.Status, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Status(id)
}

// BankMint credits amount of asset to the recipient.
func (n *Node) BankMint(ctx context.Context, asset, to [20]byte, amount *uint256.Int) error {
	_, span := n.startSpan(ctx, "bank.mint", attribute.String("asset", crypto.FormatAddress(asset)))
	n.stateMu.Lock()
	err := n.bank.Mint(asset, to, amount)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// BankApprove sets spender's allowance over owner's asset.
func (n *Node) BankApprove(ctx context.Context, asset, owner, spender [20]byte, amount *uint256.Int) error {
	_, span := n.startSpan(ctx, "bank.approve", attribute.String("asset", crypto.FormatAddress(asset)))
	n.stateMu.Lock()
	err := n.bank.Approve(asset, owner, spender, amount)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// BankTransfer moves amount of asset between accounts.
func (n *Node) BankTransfer(ctx context.Context, asset, from, to [20]byte, amount *uint256.Int) error {
	_, span := n.startSpan(ctx, "bank.transfer", attribute.String("asset", crypto.FormatAddress(asset)))
	n.stateMu.Lock()
	err := n.bank.Transfer(asset, from, to, amount)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// BankBalance returns the balance of owner in asset.
func (n *Node) BankBalance(asset, owner [20]byte) (*uint256.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.bank.BalanceOf(asset, owner)
}

// BankAllowance returns spender's remaining allowance over owner's asset.
func (n *Node) BankAllowance(asset, owner, spender [20]byte) (*uint256.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.bank.Allowance(asset, owner, spender)
}

// ClaimsMint assigns the claim for id.
func (n *Node) ClaimsMint(ctx context.Context, id escrow.Identity, to [20]byte) error {
	if n.claims == nil {
		return ErrExternalClaims
	}
	_, span := n.startSpan(ctx, "claims.mint", attribute.String("escrow.id", id.Hex()))
	n.stateMu.Lock()
	err := n.claims.Mint(id, to)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// ClaimsTransfer hands the claim for id to another holder.
func (n *Node) ClaimsTransfer(ctx context.Context, id escrow.Identity, from, to [20]byte) error {
	if n.claims == nil {
		return ErrExternalClaims
	}
	_, span := n.startSpan(ctx, "claims.transfer", attribute.String("escrow.id", id.Hex()))
	n.stateMu.Lock()
	err := n.claims.Transfer(id, from, to)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// ClaimsBurn destroys the claim for id.
func (n *Node) ClaimsBurn(ctx context.Context, id escrow.Identity, owner [20]byte) error {
	if n.claims == nil {
		return ErrExternalClaims
	}
	_, span := n.startSpan(ctx, "claims.burn", attribute.String("escrow.id", id.Hex()))
	n.stateMu.Lock()
	err := n.claims.Burn(id, owner)
	n.stateMu.Unlock()
	endSpan(span, err)
	return err
}

// ClaimsOwnerOf reports the current holder of the claim for id. The boolean is
// false when the identity is unclaimed.
func (n *Node) ClaimsOwnerOf(id escrow.Identity) ([20]byte, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	claimed, err := n.registry.IsClaimed(id)
	if err != nil || !claimed {
		return [20]byte{}, false, err
	}
	owner, err := n.registry.OwnerOf(id)
	if err != nil {
		return [20]byte{}, false, err
	}
	return owner, true, nil
}

// Events lists persisted events after the supplied cursor.
func (n *Node) Events(ctx context.Context, after int64, limit int) ([]eventlog.StoredEvent, error) {
	if n.eventLog == nil {
		return nil, ErrEventLogDisabled
	}
	return n.eventLog.List(ctx, after, limit)
}

type multiObserver []escrow.Observer

func (m multiObserver) Observe(op string, id escrow.Identity, outcome escrow.Outcome) {
	for _, observer := range m {
		if observer != nil {
			observer.Observe(op, id, outcome)
		}
	}
}

// logObserver records every ledger outcome. Silent no-ops log at info so
// operators can diagnose settlements that callers saw succeed.
type logObserver struct {
	logger *slog.Logger
}

func (o *logObserver) Observe(op string, id escrow.Identity, outcome escrow.Outcome) {
	attrs := []any{
		slog.String("op", op),
		slog.String("id", id.Hex()),
		slog.String("outcome", string(outcome)),
	}
	switch outcome {
	case escrow.OutcomeIssued, escrow.OutcomeSettled:
		o.logger.Info("escrow operation applied", attrs...)
	case escrow.OutcomeUnrecorded:
		o.logger.Error("escrow release not persisted", attrs...)
	case escrow.OutcomeError, escrow.OutcomeTransferFailed:
		o.logger.Warn("escrow operation had no effect", attrs...)
	default:
		o.logger.Info("escrow operation had no effect", attrs...)
	}
}
