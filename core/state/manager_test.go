package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/native/escrow"
	"github.com/punnkam/private-lending/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestEscrowRecordRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	var id escrow.Identity
	id[0] = 0x42

	if _, ok, err := mgr.EscrowGet(id); err != nil || ok {
		t.Fatalf("expected missing record, ok=%v err=%v", ok, err)
	}

	rec := &escrow.Record{
		ID:        id,
		Principal: escrow.Principal{Amount: uint256.NewInt(1_000), Asset: addr(0xA1)},
		Issuer:    addr(0x01),
		IssuedAt:  1_700_000_000,
	}
	if err := mgr.EscrowPut(rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := mgr.EscrowGet(id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !loaded.Principal.Equal(rec.Principal) || loaded.Issuer != rec.Issuer || loaded.IssuedAt != rec.IssuedAt || loaded.Settled {
		t.Fatalf("unexpected record: %+v", loaded)
	}

	loaded.Settled = true
	loaded.SettledAt = 1_700_000_100
	if err := mgr.EscrowPut(loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	settled, _, err := mgr.EscrowGet(id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !settled.Settled || settled.SettledAt != 1_700_000_100 {
		t.Fatalf("settlement not persisted: %+v", settled)
	}
}

func TestEscrowRecordLargeAmount(t *testing.T) {
	mgr := newTestManager(t)
	max := new(uint256.Int).SetAllOne()
	rec := &escrow.Record{ID: escrow.Identity{1}, Principal: escrow.Principal{Amount: max}}
	if err := mgr.EscrowPut(rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, _, err := mgr.EscrowGet(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !loaded.Principal.Amount.Eq(max) {
		t.Fatalf("amount truncated: %s", loaded.Principal.Amount.Dec())
	}
}

func TestBalancesAndAllowances(t *testing.T) {
	mgr := newTestManager(t)
	asset, owner, spender := addr(0xA1), addr(0x01), addr(0x02)

	balance, err := mgr.Balance(asset, owner)
	if err != nil || !balance.IsZero() {
		t.Fatalf("expected zero balance, got %v (%v)", balance, err)
	}
	if err := mgr.SetBalance(asset, owner, uint256.NewInt(500)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := mgr.SetAllowance(asset, owner, spender, uint256.NewInt(200)); err != nil {
		t.Fatalf("set allowance: %v", err)
	}
	if err := mgr.SetTotalSupply(asset, uint256.NewInt(500)); err != nil {
		t.Fatalf("set supply: %v", err)
	}

	if balance, _ := mgr.Balance(asset, owner); balance.Uint64() != 500 {
		t.Fatalf("unexpected balance %s", balance.Dec())
	}
	if allowance, _ := mgr.Allowance(asset, owner, spender); allowance.Uint64() != 200 {
		t.Fatalf("unexpected allowance %s", allowance.Dec())
	}
	if reversed, _ := mgr.Allowance(asset, spender, owner); !reversed.IsZero() {
		t.Fatalf("allowance leaked across owner/spender")
	}
	if other, _ := mgr.Balance(addr(0xA2), owner); !other.IsZero() {
		t.Fatalf("balance leaked across assets")
	}
	if supply, _ := mgr.TotalSupply(asset); supply.Uint64() != 500 {
		t.Fatalf("unexpected supply %s", supply.Dec())
	}
}

func TestClaimOwnerLifecycle(t *testing.T) {
	mgr := newTestManager(t)
	id := [32]byte{0x07}

	if _, ok, err := mgr.ClaimOwner(id); err != nil || ok {
		t.Fatalf("expected no owner, ok=%v err=%v", ok, err)
	}
	if err := mgr.SetClaimOwner(id, addr(0x01)); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	owner, ok, err := mgr.ClaimOwner(id)
	if err != nil || !ok || owner != addr(0x01) {
		t.Fatalf("unexpected owner %x ok=%v err=%v", owner, ok, err)
	}
	if err := mgr.ClearClaimOwner(id); err != nil {
		t.Fatalf("clear owner: %v", err)
	}
	if _, ok, _ := mgr.ClaimOwner(id); ok {
		t.Fatalf("burned claim still reported")
	}
}

func TestStateVersion(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.EnsureStateVersion(); err != nil {
		t.Fatalf("stamp fresh state: %v", err)
	}
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok || version != StateVersion {
		t.Fatalf("unexpected version %d ok=%v err=%v", version, ok, err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.EnsureStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestManagerPersistsAcrossLevelDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	mgr := NewManager(db)
	if err := mgr.SetBalance(addr(0xA1), addr(0x01), uint256.NewInt(9)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	db.Close()

	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()
	balance, err := NewManager(reopened).Balance(addr(0xA1), addr(0x01))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Uint64() != 9 {
		t.Fatalf("balance lost across reopen: %s", balance.Dec())
	}
}

func TestKVRequiresKey(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.KVPut(nil, uint64(1)); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := mgr.KVGet(nil, nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
