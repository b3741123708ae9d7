package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
)

func TestOnPaymentCompletedConfirmsOrder(t *testing.T) {
	svc, reconciler, orders, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	event := GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-1",
		Response:             "approved",
		TransactionFees:      decimal.NewFromInt(3),
	}
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, event))

	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.Status)
	assert.Equal(t, "txn-1", stored.GatewayTransactionID)
	assert.True(t, stored.TransactionFees.Equal(decimal.NewFromInt(3)))

	confirmed, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
}

func TestOnPaymentCompletedIdempotent(t *testing.T) {
	svc, reconciler, orders, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	event := GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-1",
		TransactionFees:      decimal.NewFromInt(3),
	}
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, event))

	// A redelivered event must change nothing
	event.GatewayTransactionID = "txn-other"
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, event))

	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "txn-1", stored.GatewayTransactionID)

	confirmed, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Len(t, confirmed.Timeline, 2)
}

func TestOnPaymentCompletedRepairsStrandedOrder(t *testing.T) {
	svc, reconciler, orders, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	// First delivery completed the payment but the order confirmation
	// never happened
	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	stored.MarkCompleted("txn-1", "approved", decimal.NewFromInt(3), time.Now().UTC())
	require.NoError(t, payments.Update(ctx, stored))

	pending, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, pending.Status)

	// The redelivered event must confirm the order
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-1",
	}))

	confirmed, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)

	unchanged, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "txn-1", unchanged.GatewayTransactionID)
}

func TestOnPaymentCompletedResolvesByGatewayTransactionID(t *testing.T) {
	svc, reconciler, orders, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-9",
	}))

	// A gateway retry keyed only by its own transaction id
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		GatewayTransactionID: "txn-9",
	}))

	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.Status)
	assert.Equal(t, "txn-9", stored.GatewayTransactionID)

	confirmed, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
}

func TestOnPaymentCompletedUnresolvableEvent(t *testing.T) {
	_, reconciler, _, _, _ := newTestStack()
	ctx := context.Background()

	err := reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{})
	assert.Error(t, err)

	err = reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		GatewayTransactionID: "txn-nobody-knows",
	})
	assert.Error(t, err)
}

func TestOnPaymentFailedKeepsOrderPending(t *testing.T) {
	svc, reconciler, orders, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, reconciler.OnPaymentFailed(ctx, GatewayPaymentEvent{
		PaymentID: payment.ID,
		Response:  "insufficient funds",
	}))

	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, stored.Status)

	pending, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, pending.Status)
}

func TestRefundCancelsOrder(t *testing.T) {
	svc, reconciler, orders, _, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-1",
	}))

	refunded, err := reconciler.Refund(ctx, payment.ID, decimal.NewFromInt(50), "damaged goods")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Status)
	assert.True(t, refunded.RefundAmount.Equal(decimal.NewFromInt(50)))

	cancelled, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
}

func TestRefundInvalidAmount(t *testing.T) {
	svc, reconciler, _, _, _ := newTestStack()
	ctx := context.Background()

	_, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID: payment.ID,
	}))

	_, err = reconciler.Refund(ctx, payment.ID, payment.Amount.Add(decimal.NewFromInt(1)), "too much")
	assert.ErrorIs(t, err, domain.ErrInvalidRefund)
}

func TestRefundPendingPayment(t *testing.T) {
	svc, reconciler, _, _, _ := newTestStack()
	ctx := context.Background()

	_, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = reconciler.Refund(ctx, payment.ID, decimal.NewFromInt(10), "not captured yet")
	assert.ErrorIs(t, err, domain.ErrInvalidRefund)
}

func TestSettlePartialBatch(t *testing.T) {
	svc, reconciler, _, payments, _ := newTestStack()
	ctx := context.Background()

	// One settleable payment
	_, settleable, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID:            settleable.ID,
		GatewayTransactionID: "txn-1",
		TransactionFees:      decimal.NewFromInt(2),
	}))

	// One still pending, one unknown
	_, pending, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	unknown := uuid.New()

	result, err := reconciler.Settle(ctx, []uuid.UUID{settleable.ID, pending.ID, unknown})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.ElementsMatch(t, []uuid.UUID{pending.ID, unknown}, result.SkippedIDs)

	settled, err := payments.GetByID(ctx, settleable.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementProcessed, settled.SettlementStatus)

	// amount 125 - 2 fees - 18.75 commission
	expected := decimal.RequireFromString("104.25")
	assert.True(t, settled.SettlementAmount.Equal(expected))
	assert.True(t, result.TotalAmount.Equal(expected))
}

func TestSettleEmptyBatch(t *testing.T) {
	_, reconciler, _, _, _ := newTestStack()

	_, err := reconciler.Settle(context.Background(), nil)
	assert.Error(t, err)
}

func TestSettleAlreadyProcessed(t *testing.T) {
	svc, reconciler, _, _, _ := newTestStack()
	ctx := context.Background()

	_, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID: payment.ID,
	}))

	first, err := reconciler.Settle(ctx, []uuid.UUID{payment.ID})
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedCount)

	second, err := reconciler.Settle(ctx, []uuid.UUID{payment.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, second.ProcessedCount)
	assert.Equal(t, []uuid.UUID{payment.ID}, second.SkippedIDs)
}
