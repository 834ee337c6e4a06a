package server

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "openreserve/native/common"
	"openreserve/native/reserve"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reserve.ErrUnregisteredAsset),
		errors.Is(err, reserve.ErrFeeVaultNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reserve.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, reserve.ErrInvalidAmount),
		errors.Is(err, reserve.ErrInvalidRate),
		errors.Is(err, reserve.ErrInvalidFeeRate),
		errors.Is(err, reserve.ErrAmountTooSmall),
		errors.Is(err, reserve.ErrAssetMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, reserve.ErrInsufficientCash),
		errors.Is(err, reserve.ErrInsufficientLiquidity),
		errors.Is(err, reserve.ErrInsufficientRepayment),
		errors.Is(err, reserve.ErrFeeVaultUnderflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, reserve.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
