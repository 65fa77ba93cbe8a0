package rpc

import (
	"net/http"
	"strings"

	"github.com/punnkam/private-lending/crypto"
)

type bankMintParams struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type bankApproveParams struct {
	Asset   string `json:"asset"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type bankTransferParams struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type bankBalanceParams struct {
	Asset string `json:"asset"`
	Owner string `json:"owner"`
}

type bankAllowanceParams struct {
	Asset   string `json:"asset"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type bankAmountResult struct {
	Asset  string `json:"asset"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type adminPauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type adminPauseResult struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleBankMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bankMintParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.BankMint(r.Context(), asset, to, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeBalance(w, req, asset, to)
}

func (s *Server) handleBankApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bankApproveParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller := PrincipalFrom(r.Context()).Address
	if err := s.node.BankApprove(r.Context(), asset, caller, spender, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankAmountResult{
		Asset:  crypto.FormatAddress(asset),
		Owner:  crypto.FormatAddress(caller),
		Amount: formatAmount(amount),
	})
}

func (s *Server) handleBankTransfer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bankTransferParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller := PrincipalFrom(r.Context()).Address
	if err := s.node.BankTransfer(r.Context(), asset, caller, to, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	s.writeBalance(w, req, asset, caller)
}

func (s *Server) handleBankBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bankBalanceParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	s.writeBalance(w, req, asset, owner)
}

func (s *Server) writeBalance(w http.ResponseWriter, req *RPCRequest, asset, owner [20]byte) {
	balance, err := s.node.BankBalance(asset, owner)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankAmountResult{
		Asset:  crypto.FormatAddress(asset),
		Owner:  crypto.FormatAddress(owner),
		Amount: formatAmount(balance),
	})
}

func (s *Server) handleBankAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bankAllowanceParams
	if !decodeParams(w, req, &params) {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	allowance, err := s.node.BankAllowance(asset, owner, spender)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankAmountResult{
		Asset:  crypto.FormatAddress(asset),
		Owner:  crypto.FormatAddress(owner),
		Amount: formatAmount(allowance),
	})
}

func (s *Server) handleAdminSetPaused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params adminPauseParams
	if !decodeParams(w, req, &params) {
		return
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "module required")
		return
	}
	s.node.SetPaused(module, params.Paused)
	s.logger.Warn("module pause updated",
		"request_id", requestIDFrom(r.Context()),
		"module", module,
		"paused", params.Paused)
	writeResult(w, req.ID, adminPauseResult{Module: module, Paused: s.node.IsPaused(module)})
}
