package service

import (
	"context"
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

// GatewayPaymentEvent is the normalized form of a payment gateway
// notification, after transport decoding
type GatewayPaymentEvent struct {
	PaymentID            uuid.UUID       `json:"payment_id"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	Response             string          `json:"response"`
	TransactionFees      decimal.Decimal `json:"transaction_fees"`
	OccurredAt           time.Time       `json:"occurred_at"`
}

// SettlementResult summarizes a settlement batch. Skipped payments do
// not fail the batch; their IDs are reported back to the caller.
type SettlementResult struct {
	ProcessedCount int             `json:"processed_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	SkippedIDs     []uuid.UUID     `json:"skipped_ids"`
}

// ReconcilerService keeps payments and orders consistent: it applies
// gateway outcomes, processes refunds and runs settlement batches.
type ReconcilerService struct {
	payments    interfaces.PaymentRepository
	orders      interfaces.OrderRepository
	orderSvc    *OrderService
	itemTimeout time.Duration
	logger      logging.Logger
	metrics     metrics.Metrics
	tracer      trace.Tracer

	locks stripedLocks
}

// NewReconcilerService creates a new reconciler service. itemTimeout
// bounds the work spent on a single payment inside a settlement batch.
func NewReconcilerService(
	payments interfaces.PaymentRepository,
	orders interfaces.OrderRepository,
	orderSvc *OrderService,
	itemTimeout time.Duration,
	logger logging.Logger,
	metrics metrics.Metrics,
) *ReconcilerService {
	return &ReconcilerService{
		payments:    payments,
		orders:      orders,
		orderSvc:    orderSvc,
		itemTimeout: itemTimeout,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("reconciler-service"),
	}
}

// OnPaymentCompleted applies a successful gateway capture and confirms
// the pending order. Repeated deliveries leave the payment untouched
// but still re-run the order confirmation check.
func (s *ReconcilerService) OnPaymentCompleted(ctx context.Context, event GatewayPaymentEvent) error {
	ctx, span := s.tracer.Start(ctx, "ReconcilerService.OnPaymentCompleted")
	defer span.End()

	paymentID, err := s.resolvePaymentID(ctx, event)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("payment_id", paymentID.String()))

	var alreadyApplied bool
	payment, err := s.mutatePayment(ctx, paymentID, func(p *domain.Payment) error {
		if p.Status != domain.PaymentPending {
			alreadyApplied = true
			return nil
		}
		p.MarkCompleted(event.GatewayTransactionID, event.Response, event.TransactionFees, time.Now().UTC())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !alreadyApplied {
		s.metrics.IncrementCounter("payments_completed_total", nil)
	}
	if payment.Status != domain.PaymentCompleted {
		s.logger.Debug(ctx, "Payment not in completed status, order left untouched", map[string]interface{}{
			"payment_id": payment.ID,
			"status":     payment.Status,
		})
		return nil
	}

	// Always run the order check, even for a redelivered event: a first
	// delivery may have completed the payment and then failed to confirm
	// the order, and only a retry can repair that.
	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if order.Status == domain.StatusPending {
		if _, err := s.orderSvc.Transition(ctx, order.ID, domain.StatusConfirmed, "payment completed"); err != nil {
			span.RecordError(err)
			return platformErrors.Wrap(err, "failed to confirm order after payment")
		}
	}

	if !alreadyApplied {
		s.logger.Info(ctx, "Payment completed", map[string]interface{}{
			"payment_id":             payment.ID,
			"order_id":               payment.OrderID,
			"gateway_transaction_id": event.GatewayTransactionID,
		})
	}
	return nil
}

// resolvePaymentID resolves the payment an event refers to. Gateway
// retries sometimes carry only the gateway's own transaction id.
func (s *ReconcilerService) resolvePaymentID(ctx context.Context, event GatewayPaymentEvent) (uuid.UUID, error) {
	if event.PaymentID != uuid.Nil {
		return event.PaymentID, nil
	}
	if event.GatewayTransactionID == "" {
		return uuid.Nil, platformErrors.NewValidation("gateway event carries no payment reference")
	}
	payment, err := s.payments.GetByGatewayTransactionID(ctx, event.GatewayTransactionID)
	if err != nil {
		return uuid.Nil, err
	}
	return payment.ID, nil
}

// OnPaymentFailed records a gateway decline. The order stays pending so
// a retry payment can still complete it.
func (s *ReconcilerService) OnPaymentFailed(ctx context.Context, event GatewayPaymentEvent) error {
	ctx, span := s.tracer.Start(ctx, "ReconcilerService.OnPaymentFailed")
	defer span.End()

	paymentID, err := s.resolvePaymentID(ctx, event)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("payment_id", paymentID.String()))

	_, err = s.mutatePayment(ctx, paymentID, func(p *domain.Payment) error {
		if p.Status != domain.PaymentPending {
			return nil
		}
		p.MarkFailed(event.Response, time.Now().UTC())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.metrics.IncrementCounter("payments_failed_total", nil)
	s.logger.Warn(ctx, "Payment failed", map[string]interface{}{
		"payment_id": paymentID,
		"response":   event.Response,
	})
	return nil
}

// Refund refunds a completed payment and cancels its order when the
// order has not reached a terminal status yet
func (s *ReconcilerService) Refund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "ReconcilerService.Refund")
	defer span.End()

	span.SetAttributes(attribute.String("payment_id", paymentID.String()))

	payment, err := s.mutatePayment(ctx, paymentID, func(p *domain.Payment) error {
		return p.ApplyRefund(amount, reason, time.Now().UTC())
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncrementCounter("payments_refunded_total", nil)
	s.metrics.RecordValue("refund_amount", amountValue(amount), nil)

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "Failed to load order after refund", err, map[string]interface{}{
			"payment_id": payment.ID,
			"order_id":   payment.OrderID,
		})
		return payment, nil
	}
	if !order.Status.IsTerminal() {
		if _, err := s.orderSvc.Transition(ctx, order.ID, domain.StatusCancelled, "payment refunded: "+reason); err != nil {
			s.logger.Error(ctx, "Failed to cancel order after refund", err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}

	s.logger.Info(ctx, "Payment refunded", map[string]interface{}{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"amount":     amount,
		"reason":     reason,
	})
	return payment, nil
}

// RefundOrderPayments fully refunds every completed payment of an
// order. Payments in any other status are skipped, which also makes the
// cancellation-refund cycle terminate.
func (s *ReconcilerService) RefundOrderPayments(ctx context.Context, orderID uuid.UUID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "ReconcilerService.RefundOrderPayments")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID.String()))

	payments, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	var firstErr error
	for _, payment := range payments {
		if payment.Status != domain.PaymentCompleted {
			continue
		}
		_, err := s.mutatePayment(ctx, payment.ID, func(p *domain.Payment) error {
			if p.Status != domain.PaymentCompleted {
				return nil
			}
			return p.ApplyRefund(p.Amount, reason, time.Now().UTC())
		})
		if err != nil {
			s.logger.Error(ctx, "Failed to refund payment for order", err, map[string]interface{}{
				"order_id":   orderID,
				"payment_id": payment.ID,
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.metrics.IncrementCounter("payments_refunded_total", nil)
	}
	return firstErr
}

// Settle processes a settlement batch. Each payment gets its own
// timeout; payments that are missing, not settleable or failing are
// skipped and reported, never failing the batch.
func (s *ReconcilerService) Settle(ctx context.Context, paymentIDs []uuid.UUID) (*SettlementResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReconcilerService.Settle")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", len(paymentIDs)))

	if len(paymentIDs) == 0 {
		return nil, platformErrors.NewValidation("settlement batch must not be empty")
	}

	// One batched read; IDs the store does not know stay out of the map
	// and are skipped below.
	prefetched, err := s.payments.GetByIDs(ctx, paymentIDs)
	if err != nil {
		span.RecordError(err)
		return nil, platformErrors.Wrap(err, "failed to load settlement batch")
	}
	byID := make(map[uuid.UUID]*domain.Payment, len(prefetched))
	for _, payment := range prefetched {
		byID[payment.ID] = payment
	}

	result := &SettlementResult{TotalAmount: decimal.Zero}
	for _, id := range paymentIDs {
		payment, ok := byID[id]
		if !ok || !payment.CanSettle() {
			result.SkippedIDs = append(result.SkippedIDs, id)
			continue
		}
		settled, amount, err := s.settleOne(ctx, payment)
		if err != nil {
			s.logger.Error(ctx, "Failed to settle payment", err, map[string]interface{}{
				"payment_id": id,
			})
		}
		if !settled {
			result.SkippedIDs = append(result.SkippedIDs, id)
			continue
		}
		result.ProcessedCount++
		result.TotalAmount = result.TotalAmount.Add(amount)
	}

	s.metrics.IncrementCounter("settlement_batches_total", nil)
	s.metrics.RecordValue("settlement_batch_processed", float64(result.ProcessedCount), nil)

	s.logger.Info(ctx, "Settlement batch processed", map[string]interface{}{
		"batch_size":   len(paymentIDs),
		"processed":    result.ProcessedCount,
		"skipped":      len(result.SkippedIDs),
		"total_amount": result.TotalAmount,
	})
	return result, nil
}

func (s *ReconcilerService) settleOne(ctx context.Context, payment *domain.Payment) (bool, decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return false, decimal.Zero, err
	}

	payment, err = s.mutatePayment(ctx, payment.ID, func(p *domain.Payment) error {
		if !p.CanSettle() {
			return platformErrors.NewConflict("payment no longer settleable")
		}
		p.Settle(order.CommissionAmount, time.Now().UTC())
		return nil
	})
	if err != nil {
		if platformErrors.IsConflict(err) {
			return false, decimal.Zero, nil
		}
		return false, decimal.Zero, err
	}
	return true, payment.SettlementAmount, nil
}

// mutatePayment mirrors the order write path: stripe lock, load,
// mutate, optimistic update with bounded retries.
func (s *ReconcilerService) mutatePayment(ctx context.Context, id uuid.UUID, fn func(*domain.Payment) error) (*domain.Payment, error) {
	lock := s.locks.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		payment, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(payment); err != nil {
			return nil, err
		}

		if err := s.payments.Update(ctx, payment); err != nil {
			if platformErrors.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return payment, nil
	}

	return nil, platformErrors.Wrap(lastErr, "payment update kept conflicting")
}
