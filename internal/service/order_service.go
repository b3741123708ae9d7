package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/metrics"
	"github.com/sanketyelugotla/zlift-ledger/internal/repository/interfaces"
)

// maxUpdateAttempts bounds the optimistic concurrency retry loop
const maxUpdateAttempts = 3

// MessageProducer defines the interface for publishing order events
type MessageProducer interface {
	PublishOrderStatusChanged(ctx context.Context, event OrderStatusChangedEvent) error
}

// OrderStatusChangedEvent is emitted after every persisted status change
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID          `json:"order_id"`
	CustomerID uuid.UUID          `json:"customer_id"`
	PartnerID  uuid.UUID          `json:"partner_id"`
	OldStatus  domain.OrderStatus `json:"old_status"`
	NewStatus  domain.OrderStatus `json:"new_status"`
	Note       string             `json:"note,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// orderRefunder is the slice of the reconciler that order cancellation
// needs. It is attached after construction to break the dependency
// cycle between the two services.
type orderRefunder interface {
	RefundOrderPayments(ctx context.Context, orderID uuid.UUID, reason string) error
}

// stripedLocks serializes writers per entity ID with a fixed set of
// striped mutexes. Striping keeps memory bounded regardless of entity
// count.
type stripedLocks struct {
	stripes [64]sync.Mutex
}

func (l *stripedLocks) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

// OrderService owns the order lifecycle: creation, status transitions
// and financial recomputation. All writes go through a per-order lock
// plus an optimistic version check in the repository.
type OrderService struct {
	orders   interfaces.OrderRepository
	payments interfaces.PaymentRepository
	finance  *FinanceCalculator
	producer MessageProducer
	logger   logging.Logger
	metrics  metrics.Metrics
	tracer   trace.Tracer

	refunder orderRefunder
	locks    stripedLocks
}

// NewOrderService creates a new order service with all dependencies
func NewOrderService(
	orders interfaces.OrderRepository,
	payments interfaces.PaymentRepository,
	finance *FinanceCalculator,
	producer MessageProducer,
	logger logging.Logger,
	metrics metrics.Metrics,
) *OrderService {
	return &OrderService{
		orders:   orders,
		payments: payments,
		finance:  finance,
		producer: producer,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("order-service"),
	}
}

// AttachReconciler wires the reconciler in after both services exist
func (s *OrderService) AttachReconciler(r orderRefunder) {
	s.refunder = r
}

// CreateOrder opens an order in pending status together with its paired
// pending payment. Line prices are snapshotted from the request and the
// financial snapshot is derived immediately.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, *domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", req.CustomerID.String()),
		attribute.String("partner_id", req.PartnerID.String()),
		attribute.Int("items_count", len(req.Items)),
	)

	if err := s.validateCreateOrderRequest(req); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	now := time.Now().UTC()
	order, err := s.buildOrder(req, now)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "Failed to create order", err, map[string]interface{}{
			"order_number": order.OrderNumber,
		})
		return nil, nil, platformErrors.Wrap(err, "failed to create order")
	}

	payment := domain.NewPayment(order.ID, order.CustomerID, order.TotalAmount, req.Currency, req.PaymentMethod, now)
	if err := s.payments.Create(ctx, payment); err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "Failed to create payment for order", err, map[string]interface{}{
			"order_id": order.ID,
		})
		return nil, nil, platformErrors.Wrap(err, "failed to create payment")
	}

	s.metrics.IncrementCounter("orders_created_total", map[string]string{
		"partner_id": order.PartnerID.String(),
	})
	s.metrics.RecordValue("order_total_amount", amountValue(order.TotalAmount), nil)

	s.logger.Info(ctx, "Order created", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"payment_id":   payment.ID,
		"total_amount": order.TotalAmount,
	})

	return order, payment, nil
}

// Transition moves an order to a new status. Cancellation triggers a
// best-effort refund of the order's completed payments; a refund
// failure is logged and the cancellation stands.
func (s *OrderService) Transition(ctx context.Context, id uuid.UUID, newStatus domain.OrderStatus, note string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.String("new_status", string(newStatus)),
	)

	if !newStatus.IsValid() {
		err := platformErrors.NewValidation(fmt.Sprintf("unknown order status: %s", newStatus))
		span.RecordError(err)
		return nil, err
	}

	var oldStatus domain.OrderStatus
	order, err := s.mutateOrder(ctx, id, func(o *domain.Order) error {
		oldStatus = o.Status
		return o.Transition(newStatus, note, time.Now().UTC())
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncrementCounter("order_transitions_total", map[string]string{
		"from": string(oldStatus),
		"to":   string(newStatus),
	})

	if newStatus == domain.StatusCancelled && s.refunder != nil {
		if err := s.refunder.RefundOrderPayments(ctx, order.ID, "order cancelled"); err != nil {
			s.logger.Error(ctx, "Failed to refund payments for cancelled order", err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}

	s.publishStatusChanged(ctx, order, oldStatus, note)

	s.logger.Info(ctx, "Order status changed", map[string]interface{}{
		"order_id": order.ID,
		"from":     oldStatus,
		"to":       newStatus,
	})

	return order, nil
}

// RecomputeFinancials re-derives the order's financial snapshot from
// fresh cost inputs
func (s *OrderService) RecomputeFinancials(ctx context.Context, id uuid.UUID, req domain.RecomputeFinancialsRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RecomputeFinancials")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	order, err := s.mutateOrder(ctx, id, func(o *domain.Order) error {
		if err := s.finance.Recompute(o, req.Commission, req.DeliveryCost, req.TransactionFees); err != nil {
			return err
		}
		o.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info(ctx, "Order financials recomputed", map[string]interface{}{
		"order_id":   order.ID,
		"net_profit": order.NetProfit,
		"margin":     order.ProfitMargin,
	})

	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// ListOrders retrieves orders matching the filter
func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return orders, nil
}

// mutateOrder runs fn against a freshly loaded order under the order's
// stripe lock and persists the result with an optimistic version check,
// retrying on a concurrent-write conflict.
func (s *OrderService) mutateOrder(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error) {
	lock := s.locks.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(order); err != nil {
			return nil, err
		}

		if err := s.orders.Update(ctx, order); err != nil {
			if platformErrors.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return order, nil
	}

	return nil, platformErrors.Wrap(lastErr, "order update kept conflicting")
}

func (s *OrderService) validateCreateOrderRequest(req domain.CreateOrderRequest) error {
	if req.CustomerID == uuid.Nil {
		return platformErrors.NewValidation("customer_id is required")
	}
	if req.PartnerID == uuid.Nil {
		return platformErrors.NewValidation("partner_id is required")
	}
	if len(req.Items) == 0 {
		return platformErrors.NewValidation("order must contain at least one item")
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return platformErrors.NewValidation(fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return platformErrors.NewValidation(fmt.Sprintf("item %d: unit price must not be negative", i))
		}
	}
	if req.DeliveryFee.IsNegative() || req.Tax.IsNegative() || req.Discount.IsNegative() {
		return platformErrors.NewValidation("delivery_fee, tax and discount must not be negative")
	}
	if req.Currency == "" {
		return platformErrors.NewValidation("currency is required")
	}
	if req.PaymentMethod == "" {
		return platformErrors.NewValidation("payment_method is required")
	}
	return nil
}

func (s *OrderService) buildOrder(req domain.CreateOrderRequest, now time.Time) (*domain.Order, error) {
	order := &domain.Order{
		ID:          uuid.New(),
		OrderNumber: generateOrderNumber(now),
		CustomerID:  req.CustomerID,
		PartnerID:   req.PartnerID,
		DeliveryFee: req.DeliveryFee,
		Tax:         req.Tax,
		Discount:    req.Discount,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	order.Items = make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		order.Items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
	}

	order.CalculateSubtotal()
	order.TotalAmount = order.Subtotal.Add(order.DeliveryFee).Add(order.Tax).Sub(order.Discount)
	if err := order.ValidateTotals(); err != nil {
		return nil, err
	}

	commission, err := s.finance.CommissionFor(order.TotalAmount, req.CommissionRate)
	if err != nil {
		return nil, err
	}
	if err := s.finance.Recompute(order, commission, decimal.Zero, decimal.Zero); err != nil {
		return nil, err
	}

	order.Timeline = []domain.TimelineEntry{{
		Status:    domain.StatusPending,
		Timestamp: now,
		Note:      "order created",
	}}

	return order, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *domain.Order, oldStatus domain.OrderStatus, note string) {
	if s.producer == nil {
		return
	}
	event := OrderStatusChangedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		PartnerID:  order.PartnerID,
		OldStatus:  oldStatus,
		NewStatus:  order.Status,
		Note:       note,
		OccurredAt: order.UpdatedAt,
	}
	if err := s.producer.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error(ctx, "Failed to publish order status event", err, map[string]interface{}{
			"order_id": order.ID,
		})
	}
}

func generateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ZL-%s-%s", now.Format("20060102"), suffix)
}

func amountValue(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
