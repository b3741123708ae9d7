package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
)

// respondWithJSON writes a JSON response with the given status code
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(response)
}

// respondWithError writes the uniform error payload
func respondWithError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  statusCode,
	}
	if err != nil {
		errorResponse.Details = err.Error()
	}
	respondWithJSON(w, statusCode, errorResponse)
}

// handleServiceError maps domain and platform errors to HTTP statuses.
// The domain sentinels come first; they are more specific than the
// platform categories that may wrap them.
func handleServiceError(w http.ResponseWriter, logger logging.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyTerminal):
		respondWithError(w, http.StatusConflict, "Order is in a terminal status", err)
	case errors.Is(err, domain.ErrIllegalTransition):
		respondWithError(w, http.StatusConflict, "Illegal status transition", err)
	case errors.Is(err, domain.ErrInvalidRefund):
		respondWithError(w, http.StatusUnprocessableEntity, "Refund precondition violated", err)
	case errors.Is(err, domain.ErrRollupExists):
		respondWithError(w, http.StatusConflict, "Rollup already exists for date", err)
	case errors.Is(err, domain.ErrInconsistentLedger):
		respondWithError(w, http.StatusUnprocessableEntity, "Ledger invariant violated", err)
	case platformErrors.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, "Resource not found", err)
	case platformErrors.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, "Validation error", err)
	case platformErrors.IsConflict(err):
		respondWithError(w, http.StatusConflict, "Conflict", err)
	case platformErrors.IsExternal(err):
		respondWithError(w, http.StatusBadGateway, "External service error", err)
	default:
		logger.Error(nil, "Internal server error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
