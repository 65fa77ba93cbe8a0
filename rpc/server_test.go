package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/punnkam/private-lending/core"
	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/storage"
	"github.com/punnkam/private-lending/storage/eventlog"
)

const testSecret = "rpc-test-secret-0123456789"

var (
	assetAddr  = crypto.FormatAddress([20]byte{0xA1})
	issuerAddr = crypto.FormatAddress([20]byte{0x01})
	holderAddr = crypto.FormatAddress([20]byte{0x02})
	adminAddr  = crypto.FormatAddress([20]byte{0x0F})
)

type testEnv struct {
	t    *testing.T
	node *core.Node
	srv  *httptest.Server
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node, err := core.NewNode(core.NodeOptions{DB: storage.NewMemDB(), EventLog: log, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })

	cfg.Auth.HMACSecret = testSecret
	cfg.Logger = logger
	srv := httptest.NewServer(NewServer(node, cfg).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, node: node, srv: srv}
}

func (e *testEnv) token(subject string, scopes ...string) string {
	e.t.Helper()
	token, err := IssueToken(testSecret, subject, "", scopes, time.Minute)
	require.NoError(e.t, err)
	return token
}

// call posts one request and decodes the response. result may be nil.
func (e *testEnv) call(token, method string, params interface{}, result interface{}) (int, *RPCError) {
	e.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(e.t, err)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{raw},
	})
	require.NoError(e.t, err)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/", bytes.NewReader(body))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&decoded))
	if decoded.Error == nil && result != nil {
		require.NoError(e.t, json.Unmarshal(decoded.Result, result))
	}
	return resp.StatusCode, decoded.Error
}

func (e *testEnv) mustCall(token, method string, params interface{}, result interface{}) {
	e.t.Helper()
	status, rpcErr := e.call(token, method, params, result)
	require.Nil(e.t, rpcErr, "%s failed with status %d", method, status)
	require.Equal(e.t, http.StatusOK, status)
}

func testOrder(nonce uint64) orderParams {
	return orderParams{Nonce: nonce, Counterparty: holderAddr, Terms: "0x6e65742d3330", Expiry: 1_800_000_000}
}

func TestEscrowLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	admin := env.token(adminAddr, ScopeAdmin)
	issuer := env.token(issuerAddr)
	holder := env.token(holderAddr)
	custody := crypto.FormatAddress(env.node.Custody())

	env.mustCall(admin, "bank_mint", bankMintParams{Asset: assetAddr, To: issuerAddr, Amount: "100"}, nil)
	env.mustCall(issuer, "bank_approve", bankApproveParams{Asset: assetAddr, Spender: custody, Amount: "100"}, nil)

	var issued escrowIDResult
	env.mustCall(issuer, "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "100", Order: testOrder(1)}, &issued)
	require.NotEmpty(t, issued.ID)

	var identity escrowIDResult
	env.mustCall(issuer, "escrow_identity", escrowIdentityParams{Order: testOrder(1)}, &identity)
	require.Equal(t, issued.ID, identity.ID)

	var status escrowStatusResult
	env.mustCall(holder, "escrow_settle", escrowIDParams{ID: issued.ID}, &status)
	require.Equal(t, "pending", status.Status)

	env.mustCall(admin, "claims_mint", claimsMintParams{ID: issued.ID, To: holderAddr}, nil)
	env.mustCall(holder, "escrow_settle", escrowIDParams{ID: issued.ID}, &status)
	require.Equal(t, "settled", status.Status)
	require.True(t, status.Settled)

	var settled bool
	env.mustCall("", "escrow_isSettled", escrowIDParams{ID: issued.ID}, &settled)
	require.True(t, settled)

	var rec escrowJSON
	env.mustCall("", "escrow_get", escrowIDParams{ID: issued.ID}, &rec)
	require.Equal(t, "100", rec.Amount)
	require.Equal(t, issuerAddr, rec.Issuer)
	require.Equal(t, assetAddr, rec.Asset)

	var balance bankAmountResult
	env.mustCall("", "bank_balance", bankBalanceParams{Asset: assetAddr, Owner: holderAddr}, &balance)
	require.Equal(t, "100", balance.Amount)

	code, rpcErr := env.call(holder, "escrow_settle", escrowIDParams{ID: issued.ID}, nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, codeConflict, rpcErr.Code)

	var page escrowEventsResult
	env.mustCall("", "escrow_listEvents", escrowListEventsParams{}, &page)
	require.NotEmpty(t, page.Events)
	require.Equal(t, page.Events[len(page.Events)-1].Sequence, page.Next)
	types := make(map[string]int)
	for _, evt := range page.Events {
		types[evt.Type]++
	}
	require.Equal(t, 1, types["escrow.issued"])
	require.Equal(t, 1, types["escrow.settled"])
}

func TestDuplicateIssueConflicts(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	admin := env.token(adminAddr, ScopeAdmin)
	issuer := env.token(issuerAddr)
	custody := crypto.FormatAddress(env.node.Custody())
	env.mustCall(admin, "bank_mint", bankMintParams{Asset: assetAddr, To: issuerAddr, Amount: "10"}, nil)
	env.mustCall(issuer, "bank_approve", bankApproveParams{Asset: assetAddr, Spender: custody, Amount: "10"}, nil)
	env.mustCall(issuer, "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "5", Order: testOrder(7)}, nil)

	status, rpcErr := env.call(issuer, "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "5", Order: testOrder(7)}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeConflict, rpcErr.Code)
}

func TestInvalidOrderRejected(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	issuer := env.token(issuerAddr)
	status, rpcErr := env.call(issuer, "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "5", Order: testOrder(0)}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalid, rpcErr.Code)

	status, rpcErr = env.call(issuer, "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "-1", Order: testOrder(1)}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestUnknownEscrowNotFound(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	id := "0x" + string(bytes.Repeat([]byte("ab"), 32))
	status, rpcErr := env.call("", "escrow_get", escrowIDParams{ID: id}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, rpcErr.Code)

	var result escrowStatusResult
	env.mustCall("", "escrow_status", escrowIDParams{ID: id}, &result)
	require.Equal(t, "unknown", result.Status)

	// settling an unknown identity is a silent no-op
	env.mustCall(env.token(holderAddr), "escrow_settle", escrowIDParams{ID: id}, &result)
	require.Equal(t, "unknown", result.Status)
}

func TestAuthRequirements(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	status, rpcErr := env.call("", "escrow_settle", escrowIDParams{ID: "0x00"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, rpcErr.Code)

	status, rpcErr = env.call("not-a-jwt", "escrow_status", escrowIDParams{ID: "0x00"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, rpcErr.Code)

	status, rpcErr = env.call(env.token(issuerAddr), "bank_mint", bankMintParams{Asset: assetAddr, To: issuerAddr, Amount: "1"}, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeForbidden, rpcErr.Code)

	forged, err := IssueToken("some-other-secret-value", issuerAddr, "", nil, time.Minute)
	require.NoError(t, err)
	status, _ = env.call(forged, "escrow_status", escrowIDParams{ID: "0x00"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestPauseOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	admin := env.token(adminAddr, ScopeAdmin)
	var paused adminPauseResult
	env.mustCall(admin, "admin_setPaused", adminPauseParams{Module: "escrow", Paused: true}, &paused)
	require.True(t, paused.Paused)

	status, rpcErr := env.call(env.token(issuerAddr), "escrow_issue", escrowIssueParams{Asset: assetAddr, Amount: "1", Order: testOrder(1)}, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, codePaused, rpcErr.Code)
}

func TestClaimsTransferRequiresOwner(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	id := "0x" + string(bytes.Repeat([]byte("cd"), 32))
	env.mustCall(env.token(adminAddr, ScopeAdmin), "claims_mint", claimsMintParams{ID: id, To: holderAddr}, nil)

	status, rpcErr := env.call(env.token(issuerAddr), "claims_transfer", claimsTransferParams{ID: id, To: issuerAddr}, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeForbidden, rpcErr.Code)

	var owner claimsOwnerResult
	env.mustCall(env.token(holderAddr), "claims_transfer", claimsTransferParams{ID: id, To: issuerAddr}, &owner)
	require.Equal(t, issuerAddr, owner.Owner)

	env.mustCall(env.token(issuerAddr), "claims_burn", escrowIDParams{ID: id}, &owner)
	require.False(t, owner.Claimed)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RequestsPerSecond: 0.001, Burst: 1})
	id := "0x" + string(bytes.Repeat([]byte("00"), 32))
	env.mustCall("", "escrow_status", escrowIDParams{ID: id}, nil)
	status, rpcErr := env.call("", "escrow_status", escrowIDParams{ID: id}, nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, rpcErr.Code)
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	resp, err := env.srv.Client().Post(env.srv.URL+"/", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, rpcErr := env.call("", "escrow_nope", escrowIDParams{}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, rpcErr.Code)

	status, rpcErr = env.call("", "escrow_get", map[string]string{"unexpected": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	resp, err := env.srv.Client().Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	env.mustCall("", "escrow_status", escrowIDParams{ID: "0x" + string(bytes.Repeat([]byte("11"), 32))}, nil)
	resp, err = env.srv.Client().Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "lending_rpc_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowedOrigins: []string{"https://app.example"}})
	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
