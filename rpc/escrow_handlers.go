package rpc

import (
	"net/http"

	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/native/escrow"
	"github.com/punnkam/private-lending/storage/eventlog"
)

type escrowIssueParams struct {
	Asset  string      `json:"asset"`
	Amount string      `json:"amount"`
	Order  orderParams `json:"order"`
}

type escrowIDParams struct {
	ID string `json:"id"`
}

type escrowIdentityParams struct {
	Order orderParams `json:"order"`
}

type escrowListEventsParams struct {
	After int64 `json:"after"`
	Limit int   `json:"limit,omitempty"`
}

type escrowIDResult struct {
	ID string `json:"id"`
}

type escrowStatusResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Settled bool   `json:"settled"`
}

type escrowJSON struct {
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Issuer    string `json:"issuer"`
	Settled   bool   `json:"settled"`
	IssuedAt  int64  `json:"issuedAt"`
	SettledAt int64  `json:"settledAt,omitempty"`
}

type escrowEventsResult struct {
	Events []eventlog.StoredEvent `json:"events"`
	Next   int64                  `json:"next"`
}

func formatEscrowJSON(rec *escrow.Record) escrowJSON {
	return escrowJSON{
		ID:        rec.ID.Hex(),
		Asset:     crypto.FormatAddress(rec.Principal.Asset),
		Amount:    formatAmount(rec.Principal.Amount),
		Issuer:    crypto.FormatAddress(rec.Issuer),
		Settled:   rec.Settled,
		IssuedAt:  rec.IssuedAt,
		SettledAt: rec.SettledAt,
	}
}

func (s *Server) handleEscrowIssue(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIssueParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller := PrincipalFrom(r.Context()).Address
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	order, err := params.Order.toOrder(caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := s.node.EscrowIssue(r.Context(), caller, escrow.Principal{Amount: amount, Asset: asset}, order)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowIDResult{ID: id.Hex()})
}

// handleEscrowSettle reports the status after the attempt since the ledger
// does not distinguish a no-op from a release.
func (s *Server) handleEscrowSettle(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller := PrincipalFrom(r.Context()).Address
	if err := s.node.EscrowSettle(r.Context(), caller, id); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeStatus(w, req, id)
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	rec, err := s.node.EscrowRecord(id)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(rec))
}

func (s *Server) handleEscrowIsSettled(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	settled, err := s.node.EscrowIsSettled(id)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, settled)
}

func (s *Server) handleEscrowStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	s.writeStatus(w, req, id)
}

func (s *Server) writeStatus(w http.ResponseWriter, req *RPCRequest, id escrow.Identity) {
	status, err := s.node.EscrowStatus(id)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowStatusResult{
		ID:      id.Hex(),
		Status:  status.String(),
		Settled: status == escrow.StatusSettled,
	})
}

func (s *Server) handleEscrowIdentity(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIdentityParams
	if !decodeParams(w, req, &params) {
		return
	}
	var fallback [20]byte
	if p := PrincipalFrom(r.Context()); p != nil {
		fallback = p.Address
	}
	order, err := params.Order.toOrder(fallback)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := s.node.EscrowIdentity(order)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowIDResult{ID: id.Hex()})
}

func (s *Server) handleEscrowListEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowListEventsParams
	if !decodeParams(w, req, &params) {
		return
	}
	if params.After < 0 || params.Limit < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "after and limit must be non-negative")
		return
	}
	stored, err := s.node.Events(r.Context(), params.After, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	next := params.After
	if len(stored) > 0 {
		next = stored[len(stored)-1].Sequence
	}
	if stored == nil {
		stored = []eventlog.StoredEvent{}
	}
	writeResult(w, req.ID, escrowEventsResult{Events: stored, Next: next})
}
