package rpc

import (
	"net/http"

	"github.com/punnkam/private-lending/crypto"
)

type claimsMintParams struct {
	ID string `json:"id"`
	To string `json:"to"`
}

type claimsTransferParams struct {
	ID string `json:"id"`
	To string `json:"to"`
}

type claimsOwnerResult struct {
	ID      string `json:"id"`
	Claimed bool   `json:"claimed"`
	Owner   string `json:"owner,omitempty"`
}

func (s *Server) handleClaimsMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimsMintParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.ClaimsMint(r.Context(), id, to); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeOwner(w, req, params.ID)
}

func (s *Server) handleClaimsTransfer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimsTransferParams
	if !decodeParams(w, req, &params) {
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller := PrincipalFrom(r.Context()).Address
	if err := s.node.ClaimsTransfer(r.Context(), id, caller, to); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeOwner(w, req, params.ID)
}

func (s *Server) handleClaimsBurn(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
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
	if err := s.node.ClaimsBurn(r.Context(), id, caller); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeOwner(w, req, params.ID)
}

func (s *Server) handleClaimsOwnerOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	s.writeOwner(w, req, params.ID)
}

func (s *Server) writeOwner(w http.ResponseWriter, req *RPCRequest, raw string) {
	id, err := parseID(raw)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	owner, claimed, err := s.node.ClaimsOwnerOf(id)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result := claimsOwnerResult{ID: id.Hex(), Claimed: claimed}
	if claimed {
		result.Owner = crypto.FormatAddress(owner)
	}
	writeResult(w, req.ID, result)
}
