package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/tracing"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
)

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	orderService *service.OrderService
	logger       logging.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService, logger logging.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateOrder handles POST /orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracing.AddSpanAttributes(ctx,
		tracing.HTTPMethodKey.String(r.Method),
		tracing.HTTPURLKey.String(r.URL.String()),
	)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error(ctx, "Failed to decode create order request", err)
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	domainReq := domain.CreateOrderRequest{
		CustomerID:     req.CustomerID,
		PartnerID:      req.PartnerID,
		DeliveryFee:    req.DeliveryFee,
		Tax:            req.Tax,
		Discount:       req.Discount,
		CommissionRate: req.CommissionRate,
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		Items:          make([]domain.CreateOrderItemRequest, len(req.Items)),
	}
	for i, item := range req.Items {
		domainReq.Items[i] = domain.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	order, payment, err := h.orderService.CreateOrder(ctx, domainReq)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		Order:   order,
		Payment: payment,
	})
}

// GetOrder handles GET /orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID", err)
		return
	}

	tracing.AddSpanAttributes(ctx, tracing.OrderIDKey.String(orderID.String()))

	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := h.parseOrderFilter(r)

	orders, err := h.orderService.ListOrders(ctx, filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OrderListResponse{
		Orders: orders,
		Count:  len(orders),
	})
}

// Transition handles POST /orders/{id}/transition
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID", err)
		return
	}

	tracing.AddSpanAttributes(ctx, tracing.OrderIDKey.String(orderID.String()))

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}
	if !req.Status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid order status", nil)
		return
	}

	order, err := h.orderService.Transition(ctx, orderID, req.Status, req.Note)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// Recompute handles POST /orders/{id}/recompute
func (h *OrderHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID", err)
		return
	}

	tracing.AddSpanAttributes(ctx, tracing.OrderIDKey.String(orderID.String()))

	var req RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	order, err := h.orderService.RecomputeFinancials(ctx, orderID, domain.RecomputeFinancialsRequest{
		Commission:      req.Commission,
		DeliveryCost:    req.DeliveryCost,
		TransactionFees: req.TransactionFees,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// HealthCheck handles GET /health when no dedicated health server runs
func (h *OrderHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   "ledger-service",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

func (h *OrderHandler) parseOrderFilter(r *http.Request) domain.OrderFilter {
	filter := domain.OrderFilter{}

	if customerIDStr := r.URL.Query().Get("customer_id"); customerIDStr != "" {
		if customerID, err := uuid.Parse(customerIDStr); err == nil {
			filter.CustomerID = &customerID
		}
	}
	if partnerIDStr := r.URL.Query().Get("partner_id"); partnerIDStr != "" {
		if partnerID, err := uuid.Parse(partnerIDStr); err == nil {
			filter.PartnerID = &partnerID
		}
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		if status := domain.OrderStatus(statusStr); status.IsValid() {
			filter.Status = &status
		}
	}

	filter.Limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			filter.Limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	return filter
}
