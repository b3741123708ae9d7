package handlers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
)

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// CreateOrderRequest is the wire form of a checkout call
type CreateOrderRequest struct {
	CustomerID     uuid.UUID                `json:"customer_id"`
	PartnerID      uuid.UUID                `json:"partner_id"`
	Items          []CreateOrderItemRequest `json:"items"`
	DeliveryFee    decimal.Decimal          `json:"delivery_fee"`
	Tax            decimal.Decimal          `json:"tax"`
	Discount       decimal.Decimal          `json:"discount"`
	CommissionRate decimal.Decimal          `json:"commission_rate"`
	Currency       string                   `json:"currency"`
	PaymentMethod  string                   `json:"payment_method"`
}

// CreateOrderItemRequest is one requested line item
type CreateOrderItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CreateOrderResponse pairs the created order with its pending payment
type CreateOrderResponse struct {
	Order   *domain.Order   `json:"order"`
	Payment *domain.Payment `json:"payment"`
}

// TransitionRequest asks for one status change
type TransitionRequest struct {
	Status domain.OrderStatus `json:"status"`
	Note   string             `json:"note,omitempty"`
}

// RecomputeRequest carries fresh cost inputs for a financial recompute
type RecomputeRequest struct {
	Commission      decimal.Decimal `json:"commission"`
	DeliveryCost    decimal.Decimal `json:"delivery_cost"`
	TransactionFees decimal.Decimal `json:"transaction_fees"`
}

// RefundRequest asks for a refund of a payment
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// SettleRequest names the payments of a settlement batch
type SettleRequest struct {
	PaymentIDs []uuid.UUID `json:"payment_ids"`
}

// OrderListResponse wraps a filtered order listing
type OrderListResponse struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

// HealthResponse is the health probe payload
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}
