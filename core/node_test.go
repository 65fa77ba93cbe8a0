package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/native/bank"
	"github.com/punnkam/private-lending/native/common"
	"github.com/punnkam/private-lending/native/escrow"
	"github.com/punnkam/private-lending/storage"
	"github.com/punnkam/private-lending/storage/eventlog"
)

var (
	usd    = [20]byte{0xA1}
	issuer = [20]byte{0x01}
	holder = [20]byte{0x02}
	buyer  = [20]byte{0x03}
)

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[escrow.Outcome]int
}

func (c *countingObserver) Observe(_ string, _ escrow.Identity, outcome escrow.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[escrow.Outcome]int)
	}
	c.outcomes[outcome]++
}

func (c *countingObserver) count(outcome escrow.Outcome) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[outcome]
}

type testNode struct {
	*Node
	recorder *events.Recorder
	observer *countingObserver
}

func newTestNode(t *testing.T, withLog bool) *testNode {
	t.Helper()
	opts := NodeOptions{
		DB:     storage.NewMemDB(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() int64 { return 1_700_000_000 },
	}
	if withLog {
		log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
		if err != nil {
			t.Fatalf("open event log: %v", err)
		}
		opts.EventLog = log
	}
	recorder := &events.Recorder{}
	observer := &countingObserver{}
	opts.Emitters = []events.Emitter{recorder}
	opts.Observers = []escrow.Observer{observer}
	node, err := NewNode(opts)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { _ = node.Close() })
	return &testNode{Node: node, recorder: recorder, observer: observer}
}

func balance(t *testing.T, n *testNode, owner [20]byte) uint64 {
	t.Helper()
	amount, err := n.BankBalance(usd, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return amount.Uint64()
}

func fundIssuer(t *testing.T, n *testNode, amount uint64) {
	t.Helper()
	ctx := context.Background()
	if err := n.BankMint(ctx, usd, issuer, uint256.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := n.BankApprove(ctx, usd, issuer, n.Custody(), uint256.NewInt(amount)); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func order(nonce uint64) escrow.Order {
	return escrow.Order{Nonce: nonce, Issuer: issuer, Counterparty: holder, Terms: []byte("net-30"), Expiry: 1_800_000_000}
}

func TestNodeEscrowLifecycle(t *testing.T) {
	n := newTestNode(t, true)
	ctx := context.Background()
	fundIssuer(t, n, 100)

	id, err := n.EscrowIssue(ctx, issuer, escrow.Principal{Amount: uint256.NewInt(100), Asset: usd}, order(1))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := balance(t, n, n.Custody()); got != 100 {
		t.Fatalf("custody balance %d", got)
	}
	if got := balance(t, n, issuer); got != 0 {
		t.Fatalf("issuer balance %d", got)
	}

	if err := n.EscrowSettle(ctx, holder, id); err != nil {
		t.Fatalf("premature settle: %v", err)
	}
	if status, _ := n.EscrowStatus(id); status != escrow.StatusPending {
		t.Fatalf("unclaimed settle changed status to %s", status)
	}
	if n.observer.count(escrow.OutcomeNotClaimed) != 1 {
		t.Fatalf("not_claimed outcome not observed")
	}

	if err := n.ClaimsMint(ctx, id, holder); err != nil {
		t.Fatalf("mint claim: %v", err)
	}
	if err := n.ClaimsTransfer(ctx, id, holder, buyer); err != nil {
		t.Fatalf("transfer claim: %v", err)
	}
	if err := n.EscrowSettle(ctx, holder, id); err != nil {
		t.Fatalf("settle by previous holder: %v", err)
	}
	if settled, _ := n.EscrowIsSettled(id); settled {
		t.Fatalf("previous holder settled")
	}
	if err := n.EscrowSettle(ctx, buyer, id); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled, _ := n.EscrowIsSettled(id); !settled {
		t.Fatalf("expected settled")
	}
	if got := balance(t, n, buyer); got != 100 {
		t.Fatalf("buyer balance %d", got)
	}
	if got := balance(t, n, n.Custody()); got != 0 {
		t.Fatalf("custody balance %d", got)
	}
	if err := n.EscrowSettle(ctx, buyer, id); !errors.Is(err, escrow.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	stored, err := n.Events(ctx, 0, 100)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var issued, settled int
	for _, evt := range stored {
		switch evt.Type {
		case events.TypeEscrowIssued:
			issued++
		case events.TypeEscrowSettled:
			settled++
			if evt.Attributes["id"] != id.Hex() {
				t.Fatalf("settled event for wrong id: %v", evt.Attributes)
			}
		}
	}
	if issued != 1 || settled != 1 {
		t.Fatalf("unexpected persisted events issued=%d settled=%d", issued, settled)
	}
	if len(n.recorder.OfType(events.TypeEscrowSettled)) != 1 {
		t.Fatalf("recorder missed settled event")
	}
}

func TestNodeIssueWithoutAllowanceIsSilent(t *testing.T) {
	n := newTestNode(t, false)
	ctx := context.Background()
	if err := n.BankMint(ctx, usd, issuer, uint256.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err := n.EscrowIssue(ctx, issuer, escrow.Principal{Amount: uint256.NewInt(10), Asset: usd}, order(1))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if status, _ := n.EscrowStatus(id); status != escrow.StatusUnknown {
		t.Fatalf("failed deposit left status %s", status)
	}
	if n.observer.count(escrow.OutcomeTransferFailed) != 1 {
		t.Fatalf("transfer failure not observed")
	}
	if got := balance(t, n, issuer); got != 10 {
		t.Fatalf("issuer lost funds: %d", got)
	}
	if _, err := n.Events(ctx, 0, 10); !errors.Is(err, ErrEventLogDisabled) {
		t.Fatalf("expected disabled event log, got %v", err)
	}
}

func TestNodePauseBlocksEscrow(t *testing.T) {
	n := newTestNode(t, false)
	ctx := context.Background()
	fundIssuer(t, n, 5)

	n.SetPaused(escrow.ModuleName, true)
	if !n.IsPaused(escrow.ModuleName) {
		t.Fatalf("pause not recorded")
	}
	if _, err := n.EscrowIssue(ctx, issuer, escrow.Principal{Amount: uint256.NewInt(5), Asset: usd}, order(1)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	n.SetPaused(escrow.ModuleName, false)
	if _, err := n.EscrowIssue(ctx, issuer, escrow.Principal{Amount: uint256.NewInt(5), Asset: usd}, order(1)); err != nil {
		t.Fatalf("issue after resume: %v", err)
	}
}

type staticRegistry struct{ owner [20]byte }

func (s staticRegistry) IsClaimed(escrow.Identity) (bool, error) { return true, nil }
func (s staticRegistry) OwnerOf(escrow.Identity) ([20]byte, error) { return s.owner, nil }

func TestNodeExternalRegistry(t *testing.T) {
	node, err := NewNode(NodeOptions{
		DB:       storage.NewMemDB(),
		Registry: staticRegistry{owner: holder},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	defer node.Close()
	ctx := context.Background()

	if err := node.ClaimsMint(ctx, escrow.Identity{}, holder); !errors.Is(err, ErrExternalClaims) {
		t.Fatalf("expected ErrExternalClaims, got %v", err)
	}
	owner, claimed, err := node.ClaimsOwnerOf(escrow.Identity{})
	if err != nil || !claimed || owner != holder {
		t.Fatalf("unexpected owner %x claimed=%v err=%v", owner, claimed, err)
	}
	if node.Custody() != DefaultCustody {
		t.Fatalf("default custody not applied")
	}
}

func TestNodeBankErrorsPropagate(t *testing.T) {
	n := newTestNode(t, false)
	err := n.BankTransfer(context.Background(), usd, issuer, holder, uint256.NewInt(1))
	if !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestNodeRequiresDatabase(t *testing.T) {
	if _, err := NewNode(NodeOptions{}); err == nil {
		t.Fatalf("expected error without database")
	}
}
