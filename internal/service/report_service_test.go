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

func newReportStack() (*ReportService, *memOrderRepo, *memRollupRepo) {
	orders := newMemOrderRepo()
	payments := newMemPaymentRepo()
	rollups := newMemRollupRepo()

	analytics := NewAnalyticsService(orders, payments, rollups, time.UTC,
		logging.NewNoOpLogger(), metrics.NewNoOpMetrics())
	reports := NewReportService(rollups, analytics, nil, time.Hour, time.UTC,
		logging.NewNoOpLogger(), metrics.NewNoOpMetrics())
	return reports, orders, rollups
}

// closedDay returns a day start safely in the past
func closedDay() time.Time {
	return domain.DayStart(time.Now().UTC().AddDate(0, 0, -3), time.UTC)
}

func storedRollup(t *testing.T, rollups *memRollupRepo, day time.Time, orders int, revenue int64) {
	t.Helper()
	err := rollups.Insert(context.Background(), &domain.DailyRollup{
		ID:   uuid.New(),
		Date: day,
		Sales: domain.SalesSummary{
			TotalOrders:  orders,
			TotalRevenue: decimal.NewFromInt(revenue),
			TotalProfit:  decimal.NewFromInt(revenue / 10),
		},
		Payments: domain.PaymentBreakdown{
			ByStatus: map[string]int{},
			ByMethod: map[string]int{},
		},
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestGetDailyRollupMissing(t *testing.T) {
	reports, _, _ := newReportStack()

	_, err := reports.GetDailyRollup(context.Background(), closedDay())
	assert.True(t, platformErrors.IsNotFound(err))
}

func TestGetDailyRollupFound(t *testing.T) {
	reports, _, rollups := newReportStack()
	day := closedDay()
	storedRollup(t, rollups, day, 4, 1000)

	rollup, err := reports.GetDailyRollup(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 4, rollup.Sales.TotalOrders)
	assert.True(t, rollup.Sales.TotalRevenue.Equal(decimal.NewFromInt(1000)))
}

func TestDashboardPrefersRollupForClosedDay(t *testing.T) {
	reports, orders, rollups := newReportStack()
	day := closedDay()

	// The rollup is authoritative even when the raw orders disagree
	storedRollup(t, rollups, day, 2, 700)
	seedDelivered(t, orders, uuid.New(), day.Add(time.Hour), day.Add(2*time.Hour), 9999, 0, 0)

	dashboard, err := reports.GetDashboard(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, dashboard.Days, 1)

	got := dashboard.Days[0]
	assert.Equal(t, SourceRollup, got.Source)
	assert.False(t, got.Stale)
	assert.Equal(t, 2, got.Sales.TotalOrders)
	assert.True(t, got.Sales.TotalRevenue.Equal(decimal.NewFromInt(700)))
}

func TestDashboardFallsBackToLiveWhenRollupMissing(t *testing.T) {
	reports, orders, _ := newReportStack()
	day := closedDay()

	seedDelivered(t, orders, uuid.New(), day.Add(time.Hour), day.Add(2*time.Hour), 350, 50, 20)

	dashboard, err := reports.GetDashboard(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, dashboard.Days, 1)

	got := dashboard.Days[0]
	assert.Equal(t, SourceLive, got.Source)
	assert.False(t, got.Stale)
	assert.Equal(t, 1, got.Sales.TotalOrders)
	assert.True(t, got.Sales.TotalRevenue.Equal(decimal.NewFromInt(350)))
}

func TestDashboardOpenDayAggregatesLive(t *testing.T) {
	reports, orders, rollups := newReportStack()
	today := domain.DayStart(time.Now().UTC(), time.UTC)

	// A rollup for the open day must not be consulted
	storedRollup(t, rollups, today, 99, 99999)
	seedDelivered(t, orders, uuid.New(), today.Add(time.Minute), today.Add(2*time.Minute), 120, 18, 6)

	dashboard, err := reports.GetDashboard(context.Background(), today, today)
	require.NoError(t, err)
	require.Len(t, dashboard.Days, 1)

	got := dashboard.Days[0]
	assert.Equal(t, SourceLive, got.Source)
	assert.Equal(t, 1, got.Sales.TotalOrders)
	assert.True(t, got.Sales.TotalRevenue.Equal(decimal.NewFromInt(120)))
}

func TestDashboardZeroedDayOnAggregationFailure(t *testing.T) {
	reports, orders, _ := newReportStack()
	day := closedDay()

	orders.scanErr = platformErrors.NewInternal("mongo down")

	dashboard, err := reports.GetDashboard(context.Background(), day, day)
	require.NoError(t, err, "one broken day must not fail the dashboard")
	require.Len(t, dashboard.Days, 1)

	got := dashboard.Days[0]
	assert.True(t, got.Stale)
	assert.Equal(t, 0, got.Sales.TotalOrders)
	assert.True(t, got.Sales.TotalRevenue.IsZero())
	assert.NotNil(t, got.Payments.ByStatus)
	assert.NotNil(t, got.Payments.ByMethod)
}

func TestDashboardRollupReadFailureFallsBackToLive(t *testing.T) {
	reports, orders, rollups := newReportStack()
	day := closedDay()

	seedDelivered(t, orders, uuid.New(), day.Add(time.Hour), day.Add(2*time.Hour), 250, 30, 12)
	rollups.getErr = platformErrors.NewInternal("mongo down")

	dashboard, err := reports.GetDashboard(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, dashboard.Days, 1)

	got := dashboard.Days[0]
	assert.Equal(t, SourceLive, got.Source)
	assert.False(t, got.Stale)
	assert.True(t, got.Sales.TotalRevenue.Equal(decimal.NewFromInt(250)))
}

func TestDashboardTotalsAcrossDays(t *testing.T) {
	reports, orders, rollups := newReportStack()
	day1 := closedDay()
	day2 := day1.AddDate(0, 0, 1)

	storedRollup(t, rollups, day1, 2, 700)
	seedDelivered(t, orders, uuid.New(), day2.Add(time.Hour), day2.Add(2*time.Hour), 300, 45, 30)

	dashboard, err := reports.GetDashboard(context.Background(), day1, day2)
	require.NoError(t, err)
	require.Len(t, dashboard.Days, 2)

	assert.Equal(t, 3, dashboard.Totals.TotalOrders)
	assert.True(t, dashboard.Totals.TotalRevenue.Equal(decimal.NewFromInt(1000)))
	// 700 from the rollup day plus 300 live, 3 orders
	assert.Equal(t, "333.33", dashboard.Totals.AverageOrderValue.String())
}

func TestDashboardRangeValidation(t *testing.T) {
	reports, _, _ := newReportStack()
	day := closedDay()

	_, err := reports.GetDashboard(context.Background(), day, day.AddDate(0, 0, -1))
	assert.Error(t, err)
}
