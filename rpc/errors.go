package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/punnkam/private-lending/core"
	"github.com/punnkam/private-lending/native/bank"
	"github.com/punnkam/private-lending/native/claims"
	"github.com/punnkam/private-lending/native/common"
	"github.com/punnkam/private-lending/native/escrow"
)

const (
	codeInvalid   = -32021
	codeNotFound  = -32022
	codeForbidden = -32023
	codeConflict  = -32024
	codeInternal  = -32025
	codePaused    = -32026
)

// writeNodeError maps node errors onto JSON-RPC codes and HTTP statuses.
func writeNodeError(w http.ResponseWriter, id json.RawMessage, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeInternal
	message := "internal_error"
	switch {
	case errors.Is(err, common.ErrModulePaused):
		status, code, message = http.StatusServiceUnavailable, codePaused, "paused"
	case errors.Is(err, escrow.ErrInvalidOrder),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrZeroAddress),
		errors.Is(err, claims.ErrZeroAddress):
		status, code, message = http.StatusBadRequest, codeInvalid, "invalid_params"
	case errors.Is(err, escrow.ErrUnknownOrder),
		errors.Is(err, claims.ErrNotFound),
		errors.Is(err, core.ErrEventLogDisabled):
		status, code, message = http.StatusNotFound, codeNotFound, "not_found"
	case errors.Is(err, claims.ErrNotOwner),
		errors.Is(err, core.ErrExternalClaims):
		status, code, message = http.StatusForbidden, codeForbidden, "forbidden"
	case errors.Is(err, escrow.ErrDuplicateOrder),
		errors.Is(err, escrow.ErrAlreadySettled),
		errors.Is(err, claims.ErrAlreadyMinted),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance),
		errors.Is(err, bank.ErrSupplyOverflow):
		status, code, message = http.StatusConflict, codeConflict, "conflict"
	}
	writeError(w, status, id, code, message, err.Error())
}

func writeInvalidParams(w http.ResponseWriter, id json.RawMessage, err error) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_params", err.Error())
}
