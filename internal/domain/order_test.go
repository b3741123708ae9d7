package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *Order {
	return &Order{
		Status: StatusPending,
		Timeline: []TimelineEntry{
			{Status: StatusPending, Timestamp: time.Now().UTC()},
		},
	}
}

func TestTransitionHappyPath(t *testing.T) {
	order := newTestOrder()
	now := time.Now().UTC()

	path := []OrderStatus{
		StatusConfirmed,
		StatusPreparing,
		StatusReadyForPickup,
		StatusPickedUp,
		StatusInTransit,
		StatusDelivered,
	}

	for _, status := range path {
		now = now.Add(time.Minute)
		require.NoError(t, order.Transition(status, "", now), "transition to %s", status)
		assert.Equal(t, status, order.Status)
	}

	require.NotNil(t, order.ConfirmedAt)
	require.NotNil(t, order.PickedUpAt)
	require.NotNil(t, order.DeliveredAt)
	assert.Len(t, order.Timeline, 1+len(path))
}

func TestTransitionFromTerminalFails(t *testing.T) {
	order := newTestOrder()
	now := time.Now().UTC()

	for _, status := range []OrderStatus{StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusPickedUp, StatusInTransit, StatusDelivered} {
		require.NoError(t, order.Transition(status, "", now))
	}

	err := order.Transition(StatusInTransit, "", now)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	err = order.Transition(StatusCancelled, "", now)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestTransitionFromPending(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		target  OrderStatus
		allowed bool
	}{
		{StatusConfirmed, true},
		{StatusCancelled, true},
		{StatusPreparing, false},
		{StatusDelivered, false},
		{StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			order := newTestOrder()
			err := order.Transition(tt.target, "", now)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			}
		})
	}
}

func TestCancelledReachableFromAnyNonTerminal(t *testing.T) {
	now := time.Now().UTC()
	path := []OrderStatus{StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusPickedUp, StatusInTransit}

	for i := range path {
		order := newTestOrder()
		for _, status := range path[:i+1] {
			require.NoError(t, order.Transition(status, "", now))
		}
		assert.NoError(t, order.Transition(StatusCancelled, "", now), "cancel from %s", path[i])
	}
}

func TestFailedOnlyFromCarrierStatuses(t *testing.T) {
	now := time.Now().UTC()

	order := newTestOrder()
	require.NoError(t, order.Transition(StatusConfirmed, "", now))
	assert.ErrorIs(t, order.Transition(StatusFailed, "", now), ErrIllegalTransition)

	order = newTestOrder()
	for _, status := range []OrderStatus{StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusPickedUp} {
		require.NoError(t, order.Transition(status, "", now))
	}
	assert.NoError(t, order.Transition(StatusFailed, "drone malfunction", now))
	assert.True(t, order.Status.IsTerminal())
}

func TestTimelineAppendOnly(t *testing.T) {
	order := newTestOrder()
	start := time.Now().UTC()

	require.NoError(t, order.Transition(StatusConfirmed, "paid", start.Add(time.Minute)))
	require.NoError(t, order.Transition(StatusPreparing, "", start.Add(2*time.Minute)))

	require.Len(t, order.Timeline, 3)
	for i := 1; i < len(order.Timeline); i++ {
		assert.False(t, order.Timeline[i].Timestamp.Before(order.Timeline[i-1].Timestamp),
			"timeline timestamps must not decrease")
	}
	assert.Equal(t, "paid", order.Timeline[1].Note)
}

func TestValidateTotals(t *testing.T) {
	order := &Order{
		Subtotal:    decimal.NewFromInt(100),
		DeliveryFee: decimal.NewFromInt(20),
		Tax:         decimal.NewFromInt(10),
		Discount:    decimal.NewFromInt(5),
		TotalAmount: decimal.NewFromInt(125),
	}
	assert.NoError(t, order.ValidateTotals())

	order.TotalAmount = decimal.NewFromInt(120)
	assert.ErrorIs(t, order.ValidateTotals(), ErrInconsistentLedger)
}

func TestCalculateSubtotal(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{LineTotal: decimal.NewFromInt(30)},
			{LineTotal: decimal.NewFromInt(45)},
		},
	}
	order.CalculateSubtotal()
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(75)))
}
