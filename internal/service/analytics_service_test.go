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
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/metrics"
)

func newAnalyticsStack() (*AnalyticsService, *memOrderRepo, *memPaymentRepo, *memRollupRepo) {
	orders := newMemOrderRepo()
	payments := newMemPaymentRepo()
	rollups := newMemRollupRepo()

	svc := NewAnalyticsService(orders, payments, rollups, time.UTC,
		logging.NewNoOpLogger(), metrics.NewNoOpMetrics())
	return svc, orders, payments, rollups
}

// seedDelivered stores a delivered order with the given financials
func seedDelivered(t *testing.T, repo *memOrderRepo, partnerID uuid.UUID, created, delivered time.Time, total, commission, profit int64) *domain.Order {
	t.Helper()

	totalDec := decimal.NewFromInt(total)
	order := &domain.Order{
		ID:               uuid.New(),
		OrderNumber:      "ZL-TEST-" + uuid.New().String()[:8],
		CustomerID:       uuid.New(),
		PartnerID:        partnerID,
		Subtotal:         totalDec,
		TotalAmount:      totalDec,
		Status:           domain.StatusDelivered,
		GrossRevenue:     totalDec,
		CommissionAmount: decimal.NewFromInt(commission),
		PartnerPayout:    totalDec.Sub(decimal.NewFromInt(commission)),
		NetProfit:        decimal.NewFromInt(profit),
		CreatedAt:        created,
		UpdatedAt:        delivered,
		DeliveredAt:      &delivered,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestBuildDailyRollup(t *testing.T) {
	svc, orders, payments, _ := newAnalyticsStack()
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	partnerA := uuid.New()
	partnerB := uuid.New()

	seedDelivered(t, orders, partnerA, day.Add(9*time.Hour), day.Add(10*time.Hour), 500, 75, 25)
	seedDelivered(t, orders, partnerA, day.Add(12*time.Hour), day.Add(13*time.Hour), 300, 45, 15)
	seedDelivered(t, orders, partnerB, day.Add(15*time.Hour), day.Add(16*time.Hour), 200, 30, 10)

	payment := domain.NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(500), "USD", "card", day.Add(9*time.Hour))
	payment.MarkCompleted("txn-1", "ok", decimal.NewFromInt(5), day.Add(9*time.Hour))
	require.NoError(t, payments.Create(ctx, payment))

	rollup, err := svc.BuildDailyRollup(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 3, rollup.Sales.TotalOrders)
	assert.True(t, rollup.Sales.TotalRevenue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, rollup.Sales.TotalProfit.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "333.33", rollup.Sales.AverageOrderValue.String())

	require.Len(t, rollup.Partners, 2)
	require.Len(t, rollup.TopPartners, 2)
	assert.Equal(t, partnerA, rollup.TopPartners[0].PartnerID)
	assert.True(t, rollup.TopPartners[0].Revenue.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, 2, rollup.TopPartners[0].Orders)

	assert.Equal(t, 1, rollup.Payments.ByStatus[string(domain.PaymentCompleted)])
	assert.Equal(t, 1, rollup.Payments.ByMethod["card"])
	assert.Equal(t, 3, rollup.Operational.Delivered)
	assert.InDelta(t, 60.0, rollup.Operational.AvgDeliveryMinutes, 0.01)
}

func TestBuildDailyRollupDuplicateDate(t *testing.T) {
	svc, _, _, _ := newAnalyticsStack()
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	_, err := svc.BuildDailyRollup(ctx, day)
	require.NoError(t, err)

	_, err = svc.BuildDailyRollup(ctx, day)
	assert.ErrorIs(t, err, domain.ErrRollupExists)

	// After an explicit delete the date can be rebuilt
	require.NoError(t, svc.DeleteDailyRollup(ctx, day))
	_, err = svc.BuildDailyRollup(ctx, day)
	assert.NoError(t, err)
}

func TestTopPartnersTieBreak(t *testing.T) {
	svc, orders, _, _ := newAnalyticsStack()
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Six partners; the first and fourth tie on revenue. The earlier
	// seen one must win the ranking slot.
	partners := make([]uuid.UUID, 6)
	revenues := []int64{100, 600, 500, 100, 400, 300}
	for i := range partners {
		partners[i] = uuid.New()
		seedDelivered(t, orders, partners[i],
			day.Add(time.Duration(i)*time.Hour),
			day.Add(time.Duration(i+1)*time.Hour),
			revenues[i], 0, 0)
	}

	rollup, err := svc.BuildDailyRollup(ctx, day)
	require.NoError(t, err)

	require.Len(t, rollup.TopPartners, 5)
	assert.Equal(t, partners[1], rollup.TopPartners[0].PartnerID)
	assert.Equal(t, partners[2], rollup.TopPartners[1].PartnerID)
	assert.Equal(t, partners[4], rollup.TopPartners[2].PartnerID)
	assert.Equal(t, partners[5], rollup.TopPartners[3].PartnerID)
	// 100 vs 100: partner[0] was seen before partner[3]
	assert.Equal(t, partners[0], rollup.TopPartners[4].PartnerID)
}

func TestQueryRevenueTrendGrowthRates(t *testing.T) {
	svc, orders, _, _ := newAnalyticsStack()
	ctx := context.Background()

	day1 := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day4 := day1.AddDate(0, 0, 3)

	partner := uuid.New()
	seedDelivered(t, orders, partner, day1.Add(time.Hour), day1.Add(2*time.Hour), 200, 30, 10)
	seedDelivered(t, orders, partner, day2.Add(time.Hour), day2.Add(2*time.Hour), 300, 45, 15)
	// day3 has no deliveries
	seedDelivered(t, orders, partner, day4.Add(time.Hour), day4.Add(2*time.Hour), 100, 15, 5)

	trend, err := svc.QueryRevenueTrend(ctx, TrendQuery{
		From:        day1,
		To:          day1.AddDate(0, 0, 4),
		Granularity: domain.GranularityDay,
	})
	require.NoError(t, err)
	require.Len(t, trend.Buckets, 4)

	// First bucket always 0
	assert.True(t, trend.Buckets[0].GrowthRate.IsZero())
	// 200 -> 300 is +50%
	assert.True(t, trend.Buckets[1].GrowthRate.Equal(decimal.NewFromInt(50)))
	// 300 -> 0 is -100%
	assert.True(t, trend.Buckets[2].GrowthRate.Equal(decimal.NewFromInt(-100)))
	// Zero-revenue predecessor clamps to 0
	assert.True(t, trend.Buckets[3].GrowthRate.IsZero())

	assert.Equal(t, 3, trend.Summary.TotalOrders)
	assert.True(t, trend.Summary.TotalRevenue.Equal(decimal.NewFromInt(600)))
	assert.True(t, trend.Summary.AverageOrderValue.Equal(decimal.NewFromInt(200)))
}

func TestQueryRevenueTrendValidation(t *testing.T) {
	svc, _, _, _ := newAnalyticsStack()
	ctx := context.Background()

	_, err := svc.QueryRevenueTrend(ctx, TrendQuery{Granularity: "week"})
	assert.Error(t, err)

	_, err = svc.QueryRevenueTrend(ctx, TrendQuery{Granularity: domain.GranularityDay})
	assert.Error(t, err, "missing window must be rejected")
}

func TestQueryRevenueTrendHourly(t *testing.T) {
	svc, orders, _, _ := newAnalyticsStack()
	ctx := context.Background()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	partner := uuid.New()
	seedDelivered(t, orders, partner, day, day.Add(30*time.Minute), 100, 15, 5)
	seedDelivered(t, orders, partner, day, day.Add(90*time.Minute), 200, 30, 10)

	trend, err := svc.QueryRevenueTrend(ctx, TrendQuery{
		From:        day,
		To:          day.Add(2 * time.Hour),
		Granularity: domain.GranularityHour,
	})
	require.NoError(t, err)
	require.Len(t, trend.Buckets, 2)
	assert.True(t, trend.Buckets[0].GrossRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, trend.Buckets[1].GrossRevenue.Equal(decimal.NewFromInt(200)))
	assert.True(t, trend.Buckets[1].GrowthRate.Equal(decimal.NewFromInt(100)))
}
