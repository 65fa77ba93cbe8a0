package evmclaims

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/punnkam/private-lending/native/escrow"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c1a11")
	holder       = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeContract answers isClaimed/ownerOf from an in-memory owner table.
type fakeContract struct {
	t      *testing.T
	abi    abi.ABI
	owners map[string]common.Address
	calls  int
}

func newFakeContract(t *testing.T) *fakeContract {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(claimABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return &fakeContract{t: t, abi: parsed, owners: make(map[string]common.Address)}
}

func (f *fakeContract) respond(data []byte) ([]byte, error) {
	f.calls++
	if len(data) < 4 {
		return nil, errors.New("short calldata")
	}
	method, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	tokenID := args[0].(*big.Int)
	owner, ok := f.owners[tokenID.String()]
	switch method.Name {
	case "isClaimed":
		return method.Outputs.Pack(ok)
	case "ownerOf":
		if !ok {
			return nil, errors.New("execution reverted: invalid token id")
		}
		return method.Outputs.Pack(owner)
	}
	return nil, errors.New("unexpected method")
}

func (f *fakeContract) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != contractAddr {
		f.t.Fatalf("call sent to %v", msg.To)
	}
	return f.respond(msg.Data)
}

func TestRegistryAgainstContract(t *testing.T) {
	fake := newFakeContract(t)
	reg, err := NewRegistry(fake, contractAddr, 0)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	id := escrow.Identity{31: 0x2a}

	claimed, err := reg.IsClaimed(id)
	if err != nil || claimed {
		t.Fatalf("expected unclaimed, got %v (%v)", claimed, err)
	}
	if _, err := reg.OwnerOf(id); err == nil {
		t.Fatalf("expected revert for unminted token")
	}

	fake.owners["42"] = holder
	claimed, err = reg.IsClaimed(id)
	if err != nil || !claimed {
		t.Fatalf("expected claimed, got %v (%v)", claimed, err)
	}
	owner, err := reg.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != holder {
		t.Fatalf("unexpected owner %x", owner)
	}
}

func TestTokenIDIsBigEndian(t *testing.T) {
	var id escrow.Identity
	id[30] = 0x01
	if got := TokenID(id); got.Uint64() != 256 {
		t.Fatalf("unexpected token id %s", got)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	if _, err := NewRegistry(nil, contractAddr, 0); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewRegistry(newFakeContract(t), common.Address{}, 0); err == nil {
		t.Fatalf("expected error for zero contract")
	}
	if _, err := Dial("  "); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type callArgs struct {
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
}

func TestRegistryOverJSONRPC(t *testing.T) {
	fake := newFakeContract(t)
	fake.owners["7"] = holder

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_call" || len(req.Params) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		var args callArgs
		if err := json.Unmarshal(req.Params[0], &args); err != nil {
			t.Errorf("decode call args: %v", err)
			return
		}
		data := []byte(args.Input)
		if len(data) == 0 {
			data = args.Data
		}
		out, err := fake.respond(data)
		if err != nil {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": 3, "message": err.Error()},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": hexutil.Bytes(out),
		})
	}))
	defer server.Close()

	client, err := Dial(server.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	reg, err := NewRegistry(client, contractAddr, 0)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	id := escrow.Identity{31: 0x07}
	claimed, err := reg.IsClaimed(id)
	if err != nil || !claimed {
		t.Fatalf("expected claimed, got %v (%v)", claimed, err)
	}
	owner, err := reg.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if !bytes.Equal(owner[:], holder.Bytes()) {
		t.Fatalf("unexpected owner %x", owner)
	}
	if _, err := reg.OwnerOf(escrow.Identity{31: 0x08}); err == nil {
		t.Fatalf("expected revert error")
	}
}
