package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompletedPayment(amount int64) *Payment {
	now := time.Now().UTC()
	p := NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(amount), "USD", "card", now)
	p.MarkCompleted("txn-1", "ok", decimal.NewFromInt(2), now)
	return p
}

func TestApplyRefundBounds(t *testing.T) {
	now := time.Now().UTC()

	t.Run("pending payment", func(t *testing.T) {
		p := NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(100), "USD", "card", now)
		err := p.ApplyRefund(decimal.NewFromInt(50), "test", now)
		assert.ErrorIs(t, err, ErrInvalidRefund)
	})

	t.Run("amount exceeds payment", func(t *testing.T) {
		p := newCompletedPayment(100)
		err := p.ApplyRefund(decimal.NewFromInt(101), "test", now)
		assert.ErrorIs(t, err, ErrInvalidRefund)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		p := newCompletedPayment(100)
		assert.ErrorIs(t, p.ApplyRefund(decimal.Zero, "test", now), ErrInvalidRefund)
		assert.ErrorIs(t, p.ApplyRefund(decimal.NewFromInt(-10), "test", now), ErrInvalidRefund)
	})

	t.Run("full refund", func(t *testing.T) {
		p := newCompletedPayment(100)
		require.NoError(t, p.ApplyRefund(decimal.NewFromInt(100), "cancelled", now))
		assert.Equal(t, PaymentRefunded, p.Status)
		assert.True(t, p.RefundAmount.Equal(decimal.NewFromInt(100)))
		require.NotNil(t, p.RefundedAt)
	})
}

func TestSettle(t *testing.T) {
	now := time.Now().UTC()

	p := newCompletedPayment(500)
	require.True(t, p.CanSettle())

	p.Settle(decimal.NewFromInt(75), now)

	// 500 - 2 fees - 75 commission
	assert.True(t, p.SettlementAmount.Equal(decimal.NewFromInt(423)))
	assert.Equal(t, SettlementProcessed, p.SettlementStatus)
	require.NotNil(t, p.SettlementDate)
	assert.False(t, p.CanSettle())
}

func TestCanSettleRequiresCompleted(t *testing.T) {
	now := time.Now().UTC()
	p := NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(100), "USD", "card", now)
	assert.False(t, p.CanSettle())

	p.MarkFailed("declined", now)
	assert.False(t, p.CanSettle())
}
