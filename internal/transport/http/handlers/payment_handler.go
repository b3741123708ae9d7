package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/tracing"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
)

// PaymentHandler handles HTTP requests for refunds and settlement
type PaymentHandler struct {
	reconciler *service.ReconcilerService
	logger     logging.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(reconciler *service.ReconcilerService, logger logging.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Refund handles POST /payments/{id}/refund
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID", err)
		return
	}

	tracing.AddSpanAttributes(ctx, tracing.PaymentIDKey.String(paymentID.String()))

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	payment, err := h.reconciler.Refund(ctx, paymentID, req.Amount, req.Reason)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

// Settle handles POST /settlements
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	result, err := h.reconciler.Settle(ctx, req.PaymentIDs)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
