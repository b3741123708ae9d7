package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// SettlementStatus tracks whether a payment's partner payout has been
// included in a settlement batch
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementProcessed SettlementStatus = "processed"
)

// Domain errors raised by payment operations
var (
	ErrInvalidRefund = errors.New("refund precondition violated")
)

// Payment is one payment attempt and settlement unit tied to an order
type Payment struct {
	ID         uuid.UUID `json:"id" bson:"_id"`
	OrderID    uuid.UUID `json:"order_id" bson:"order_id"`
	CustomerID uuid.UUID `json:"customer_id" bson:"customer_id"`

	Amount   decimal.Decimal `json:"amount" bson:"amount"`
	Currency string          `json:"currency" bson:"currency"`
	Method   string          `json:"method" bson:"method"`

	Status               PaymentStatus `json:"status" bson:"status"`
	GatewayTransactionID string        `json:"gateway_transaction_id,omitempty" bson:"gateway_transaction_id,omitempty"`
	GatewayResponse      string        `json:"gateway_response,omitempty" bson:"gateway_response,omitempty"`

	SettlementStatus SettlementStatus `json:"settlement_status" bson:"settlement_status"`
	SettlementAmount decimal.Decimal  `json:"settlement_amount" bson:"settlement_amount"`
	SettlementDate   *time.Time       `json:"settlement_date,omitempty" bson:"settlement_date,omitempty"`
	TransactionFees  decimal.Decimal  `json:"transaction_fees" bson:"transaction_fees"`

	RefundAmount decimal.Decimal `json:"refund_amount" bson:"refund_amount"`
	RefundReason string          `json:"refund_reason,omitempty" bson:"refund_reason,omitempty"`
	RefundedAt   *time.Time      `json:"refunded_at,omitempty" bson:"refunded_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	Version int `json:"-" bson:"version"`
}

// NewPayment creates the pending payment paired with an order at checkout
func NewPayment(orderID, customerID uuid.UUID, amount decimal.Decimal, currency, method string, now time.Time) *Payment {
	return &Payment{
		ID:               uuid.New(),
		OrderID:          orderID,
		CustomerID:       customerID,
		Amount:           amount,
		Currency:         currency,
		Method:           method,
		Status:           PaymentPending,
		SettlementStatus: SettlementPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MarkCompleted records a successful gateway capture
func (p *Payment) MarkCompleted(gatewayTxnID, gatewayResponse string, fees decimal.Decimal, now time.Time) {
	p.Status = PaymentCompleted
	p.GatewayTransactionID = gatewayTxnID
	p.GatewayResponse = gatewayResponse
	p.TransactionFees = fees
	p.UpdatedAt = now
}

// MarkFailed records a gateway decline or failure
func (p *Payment) MarkFailed(gatewayResponse string, now time.Time) {
	p.Status = PaymentFailed
	p.GatewayResponse = gatewayResponse
	p.UpdatedAt = now
}

// ApplyRefund moves the payment to refunded. A refund requires a
// completed payment and an amount within the captured amount.
func (p *Payment) ApplyRefund(amount decimal.Decimal, reason string, now time.Time) error {
	if p.Status != PaymentCompleted {
		return fmt.Errorf("%w: payment is %s, not completed", ErrInvalidRefund, p.Status)
	}
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("%w: refund amount %s must be positive", ErrInvalidRefund, amount)
	}
	if amount.GreaterThan(p.Amount) {
		return fmt.Errorf("%w: refund %s exceeds payment amount %s", ErrInvalidRefund, amount, p.Amount)
	}

	p.Status = PaymentRefunded
	p.RefundAmount = amount
	p.RefundReason = reason
	p.RefundedAt = &now
	p.UpdatedAt = now
	return nil
}

// CanSettle reports whether the payment qualifies for a settlement batch
func (p *Payment) CanSettle() bool {
	return p.Status == PaymentCompleted && p.SettlementStatus == SettlementPending
}

// Settle computes the settlement amount against the order's commission
// and stamps the settlement. Callers must check CanSettle first.
func (p *Payment) Settle(commissionAmount decimal.Decimal, now time.Time) {
	p.SettlementAmount = p.Amount.Sub(p.TransactionFees).Sub(commissionAmount)
	p.SettlementStatus = SettlementProcessed
	p.SettlementDate = &now
	p.UpdatedAt = now
}
