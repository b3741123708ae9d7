package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the current status of an order
type OrderStatus string

const (
	StatusPending       OrderStatus = "pending"
	StatusConfirmed     OrderStatus = "confirmed"
	StatusPreparing     OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusPickedUp      OrderStatus = "picked_up"
	StatusInTransit     OrderStatus = "in_transit"
	StatusDelivered     OrderStatus = "delivered"
	StatusCancelled     OrderStatus = "cancelled"
	StatusFailed        OrderStatus = "failed"
)

// Domain errors raised by the state machine
var (
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrAlreadyTerminal   = errors.New("order is in a terminal status")
)

// happyPath maps each status to its direct successor on the delivery path.
// cancelled is reachable from any non-terminal status; failed only from
// picked_up and in_transit.
var happyPath = map[OrderStatus]OrderStatus{
	StatusPending:        StatusConfirmed,
	StatusConfirmed:      StatusPreparing,
	StatusPreparing:      StatusReadyForPickup,
	StatusReadyForPickup: StatusPickedUp,
	StatusPickedUp:       StatusInTransit,
	StatusInTransit:      StatusDelivered,
}

// canFail holds the statuses from which a delivery failure is possible
var canFail = map[OrderStatus]bool{
	StatusPickedUp:  true,
	StatusInTransit: true,
}

// IsTerminal reports whether no further transition is permitted
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// IsValid reports whether s is a known order status
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReadyForPickup,
		StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// TimelineEntry records one status change in an order's history
type TimelineEntry struct {
	Status    OrderStatus `json:"status" bson:"status"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Note      string      `json:"note,omitempty" bson:"note,omitempty"`
}

// OrderItem is one ordered line with a price snapshot taken at checkout
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id" bson:"product_id"`
	Name      string          `json:"name" bson:"name"`
	UnitPrice decimal.Decimal `json:"unit_price" bson:"unit_price"`
	Quantity  int             `json:"quantity" bson:"quantity"`
	LineTotal decimal.Decimal `json:"line_total" bson:"line_total"`
}

// Order is one purchase transaction. Status moves exclusively through
// Transition; financial fields are derived by the finance calculator and
// must reconcile with the raw amounts at all times.
type Order struct {
	ID          uuid.UUID   `json:"id" bson:"_id"`
	OrderNumber string      `json:"order_number" bson:"order_number"`
	CustomerID  uuid.UUID   `json:"customer_id" bson:"customer_id"`
	PartnerID   uuid.UUID   `json:"partner_id" bson:"partner_id"`
	Items       []OrderItem `json:"items" bson:"items"`

	Subtotal    decimal.Decimal `json:"subtotal" bson:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee" bson:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax" bson:"tax"`
	Discount    decimal.Decimal `json:"discount" bson:"discount"`
	TotalAmount decimal.Decimal `json:"total_amount" bson:"total_amount"`

	Status   OrderStatus     `json:"status" bson:"status"`
	Timeline []TimelineEntry `json:"timeline" bson:"timeline"`

	DroneID    *uuid.UUID `json:"drone_id,omitempty" bson:"drone_id,omitempty"`
	OperatorID *uuid.UUID `json:"operator_id,omitempty" bson:"operator_id,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	PreparedAt  *time.Time `json:"prepared_at,omitempty" bson:"prepared_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty" bson:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`

	// Financial snapshot, derived from the raw amounts above
	GrossRevenue     decimal.Decimal `json:"gross_revenue" bson:"gross_revenue"`
	CommissionAmount decimal.Decimal `json:"commission_amount" bson:"commission_amount"`
	PartnerPayout    decimal.Decimal `json:"partner_payout" bson:"partner_payout"`
	DeliveryCost     decimal.Decimal `json:"delivery_cost" bson:"delivery_cost"`
	TransactionFees  decimal.Decimal `json:"transaction_fees" bson:"transaction_fees"`
	NetProfit        decimal.Decimal `json:"net_profit" bson:"net_profit"`
	ProfitMargin     decimal.Decimal `json:"profit_margin" bson:"profit_margin"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	// Version supports optimistic concurrency on updates
	Version int `json:"-" bson:"version"`
}

// CanTransition reports whether newStatus is directly reachable from the
// order's current status
func (o *Order) CanTransition(newStatus OrderStatus) bool {
	if o.Status.IsTerminal() {
		return false
	}
	switch newStatus {
	case StatusCancelled:
		return true
	case StatusFailed:
		return canFail[o.Status]
	default:
		return happyPath[o.Status] == newStatus
	}
}

// Transition moves the order to newStatus, appends the timeline entry and
// stamps the matching timestamp field. The transition table is enforced:
// a terminal order returns ErrAlreadyTerminal, an unreachable target
// returns ErrIllegalTransition.
func (o *Order) Transition(newStatus OrderStatus, note string, now time.Time) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, o.Status)
	}
	if !o.CanTransition(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, newStatus)
	}

	o.Status = newStatus
	o.UpdatedAt = now
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    newStatus,
		Timestamp: now,
		Note:      note,
	})

	switch newStatus {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusPreparing:
		o.PreparedAt = &now
	case StatusPickedUp:
		o.PickedUpAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}

	return nil
}

// CalculateSubtotal sums the line totals
func (o *Order) CalculateSubtotal() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	o.Subtotal = subtotal
}

// ValidateTotals checks the raw amount invariant:
// totalAmount == subtotal + deliveryFee + tax - discount, non-negative.
func (o *Order) ValidateTotals() error {
	expected := o.Subtotal.Add(o.DeliveryFee).Add(o.Tax).Sub(o.Discount)
	if !o.TotalAmount.Equal(expected) {
		return fmt.Errorf("%w: total %s does not match %s", ErrInconsistentLedger, o.TotalAmount, expected)
	}
	if o.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: negative total %s", ErrInconsistentLedger, o.TotalAmount)
	}
	return nil
}

// OrderFilter represents filters for querying orders
type OrderFilter struct {
	CustomerID *uuid.UUID   `json:"customer_id,omitempty"`
	PartnerID  *uuid.UUID   `json:"partner_id,omitempty"`
	Status     *OrderStatus `json:"status,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}
