package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderItemRequest is one line of a checkout request. The unit
// price is snapshotted onto the order at creation time.
type CreateOrderItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CreateOrderRequest carries everything needed to open an order and its
// paired pending payment
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

// RecomputeFinancialsRequest carries the cost inputs for a financial
// recomputation of an existing order
type RecomputeFinancialsRequest struct {
	Commission      decimal.Decimal `json:"commission"`
	DeliveryCost    decimal.Decimal `json:"delivery_cost"`
	TransactionFees decimal.Decimal `json:"transaction_fees"`
}
