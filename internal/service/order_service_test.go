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
	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/metrics"
)

type capturingProducer struct {
	events []OrderStatusChangedEvent
}

func (p *capturingProducer) PublishOrderStatusChanged(ctx context.Context, event OrderStatusChangedEvent) error {
	p.events = append(p.events, event)
	return nil
}

func newTestStack() (*OrderService, *ReconcilerService, *memOrderRepo, *memPaymentRepo, *capturingProducer) {
	orders := newMemOrderRepo()
	payments := newMemPaymentRepo()
	producer := &capturingProducer{}
	logger := logging.NewNoOpLogger()
	m := metrics.NewNoOpMetrics()

	orderSvc := NewOrderService(orders, payments, NewFinanceCalculator(), producer, logger, m)
	reconciler := NewReconcilerService(payments, orders, orderSvc, 5*time.Second, logger, m)
	orderSvc.AttachReconciler(reconciler)

	return orderSvc, reconciler, orders, payments, producer
}

func validCreateRequest() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		CustomerID:     uuid.New(),
		PartnerID:      uuid.New(),
		DeliveryFee:    decimal.NewFromInt(20),
		Tax:            decimal.NewFromInt(5),
		Discount:       decimal.Zero,
		CommissionRate: decimal.RequireFromString("0.15"),
		Currency:       "USD",
		PaymentMethod:  "card",
		Items: []domain.CreateOrderItemRequest{
			{ProductID: uuid.New(), Name: "first aid kit", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	svc, _, _, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(125)))
	assert.True(t, order.CommissionAmount.Equal(decimal.RequireFromString("18.75")))
	assert.True(t, order.PartnerPayout.Equal(decimal.RequireFromString("106.25")))
	require.Len(t, order.Timeline, 1)
	assert.NotEmpty(t, order.OrderNumber)

	require.NotNil(t, payment)
	assert.Equal(t, order.ID, payment.OrderID)
	assert.Equal(t, domain.PaymentPending, payment.Status)
	assert.True(t, payment.Amount.Equal(order.TotalAmount))

	stored, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.Status)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _, _, _ := newTestStack()
	ctx := context.Background()

	req := validCreateRequest()
	req.Items = nil
	_, _, err := svc.CreateOrder(ctx, req)
	assert.True(t, platformErrors.IsValidation(err))

	req = validCreateRequest()
	req.Items[0].Quantity = 0
	_, _, err = svc.CreateOrder(ctx, req)
	assert.True(t, platformErrors.IsValidation(err))
}

func TestTransitionPersistsAndPublishes(t *testing.T) {
	svc, _, orders, _, producer := newTestStack()
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.Transition(ctx, order.ID, domain.StatusConfirmed, "payment ok")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)

	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Len(t, stored.Timeline, 2)

	require.Len(t, producer.events, 1)
	assert.Equal(t, domain.StatusPending, producer.events[0].OldStatus)
	assert.Equal(t, domain.StatusConfirmed, producer.events[0].NewStatus)
}

func TestTransitionIllegalTarget(t *testing.T) {
	svc, _, _, _, _ := newTestStack()
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, order.ID, domain.StatusDelivered, "")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestCancellationRefundsCompletedPayments(t *testing.T) {
	svc, reconciler, _, payments, _ := newTestStack()
	ctx := context.Background()

	order, payment, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	// Gateway completes the payment, confirming the order
	require.NoError(t, reconciler.OnPaymentCompleted(ctx, GatewayPaymentEvent{
		PaymentID:            payment.ID,
		GatewayTransactionID: "txn-100",
		TransactionFees:      decimal.NewFromInt(3),
	}))

	_, err = svc.Transition(ctx, order.ID, domain.StatusCancelled, "customer request")
	require.NoError(t, err)

	refunded, err := payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Status)
	assert.True(t, refunded.RefundAmount.Equal(refunded.Amount))
}

func TestRecomputeFinancialsOperation(t *testing.T) {
	svc, _, orders, _, _ := newTestStack()
	ctx := context.Background()

	order, _, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.RecomputeFinancials(ctx, order.ID, domain.RecomputeFinancialsRequest{
		Commission:      decimal.NewFromInt(25),
		DeliveryCost:    decimal.NewFromInt(12),
		TransactionFees: decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	assert.True(t, updated.PartnerPayout.Equal(decimal.NewFromInt(100)))
	assert.True(t, updated.NetProfit.Equal(decimal.NewFromInt(10)))

	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.NetProfit.Equal(decimal.NewFromInt(10)))
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc, _, _, _, _ := newTestStack()

	_, err := svc.Transition(context.Background(), uuid.New(), domain.StatusConfirmed, "")
	assert.True(t, platformErrors.IsNotFound(err))
}
