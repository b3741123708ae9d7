package service

import (
	"context"
	"fmt"
	"sort"
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

// topPartnerCount is how many partners a rollup highlights
const topPartnerCount = 5

// TrendQuery selects the window and bucket size of a revenue trend.
// Either LastDays or an explicit From/To range is given; LastDays wins
// when both are set.
type TrendQuery struct {
	LastDays    int
	From        time.Time
	To          time.Time
	Granularity domain.Granularity
}

// TrendBucket is one time bucket of a revenue trend. GrowthRate is the
// bucket-over-bucket gross revenue change as a percentage, 0 for the
// first bucket and when the previous bucket had zero revenue.
type TrendBucket struct {
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	Orders          int             `json:"orders"`
	GrossRevenue    decimal.Decimal `json:"gross_revenue"`
	NetRevenue      decimal.Decimal `json:"net_revenue"`
	Commission      decimal.Decimal `json:"commission"`
	DeliveryCost    decimal.Decimal `json:"delivery_cost"`
	TransactionFees decimal.Decimal `json:"transaction_fees"`
	Profit          decimal.Decimal `json:"profit"`
	GrowthRate      decimal.Decimal `json:"growth_rate"`
}

// TrendSummary totals a trend over its whole window
type TrendSummary struct {
	TotalOrders       int             `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// RevenueTrend is an ordered sequence of bucket summaries plus overall
// totals
type RevenueTrend struct {
	Granularity domain.Granularity `json:"granularity"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Buckets     []TrendBucket      `json:"buckets"`
	Summary     TrendSummary       `json:"summary"`
}

// AnalyticsService produces time-bucketed summaries so that reporting
// never re-scans the full order history per request. All reads are
// plain snapshots; nothing here blocks order mutation.
type AnalyticsService struct {
	orders   interfaces.OrderRepository
	payments interfaces.PaymentRepository
	rollups  interfaces.RollupRepository
	location *time.Location
	logger   logging.Logger
	metrics  metrics.Metrics
	tracer   trace.Tracer
}

// NewAnalyticsService creates a new analytics service. location is the
// reporting timezone all calendar-date arithmetic happens in.
func NewAnalyticsService(
	orders interfaces.OrderRepository,
	payments interfaces.PaymentRepository,
	rollups interfaces.RollupRepository,
	location *time.Location,
	logger logging.Logger,
	metrics metrics.Metrics,
) *AnalyticsService {
	return &AnalyticsService{
		orders:   orders,
		payments: payments,
		rollups:  rollups,
		location: location,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("analytics-service"),
	}
}

// BuildDailyRollup aggregates one calendar date and persists the
// result. A date that already has a rollup is rejected with
// domain.ErrRollupExists; rollups are never overwritten.
func (s *AnalyticsService) BuildDailyRollup(ctx context.Context, date time.Time) (*domain.DailyRollup, error) {
	ctx, span := s.tracer.Start(ctx, "AnalyticsService.BuildDailyRollup")
	defer span.End()

	dayStart := domain.DayStart(date, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	span.SetAttributes(attribute.String("date", dayStart.Format("2006-01-02")))

	if _, err := s.rollups.GetByDate(ctx, dayStart); err == nil {
		return nil, domain.ErrRollupExists
	} else if !platformErrors.IsNotFound(err) {
		span.RecordError(err)
		return nil, err
	}

	summary, err := s.AggregateDay(ctx, dayStart, dayEnd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rollup := &domain.DailyRollup{
		ID:          uuid.New(),
		Date:        dayStart,
		Sales:       summary.Sales,
		Partners:    summary.Partners,
		TopPartners: summary.TopPartners,
		TopProducts: summary.TopProducts,
		Payments:    summary.Payments,
		Operational: summary.Operational,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.rollups.Insert(ctx, rollup); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncrementCounter("rollups_built_total", nil)
	s.logger.Info(ctx, "Daily rollup built", map[string]interface{}{
		"date":         dayStart.Format("2006-01-02"),
		"total_orders": rollup.Sales.TotalOrders,
		"revenue":      rollup.Sales.TotalRevenue,
	})
	return rollup, nil
}

// DeleteDailyRollup removes a rollup so the date can be rebuilt
func (s *AnalyticsService) DeleteDailyRollup(ctx context.Context, date time.Time) error {
	return s.rollups.DeleteByDate(ctx, domain.DayStart(date, s.location))
}

// DaySummary is one day's aggregate, either persisted as a rollup or
// computed live for an open day
type DaySummary struct {
	Sales       domain.SalesSummary
	Partners    []domain.PartnerSales
	TopPartners []domain.PartnerSales
	TopProducts []domain.ProductSales
	Payments    domain.PaymentBreakdown
	Operational domain.OperationalMetrics
}

// AggregateDay computes a day window's aggregate from the raw orders
// and payments. Read-only; a rollup built mid-day is not retroactively
// corrected.
func (s *AnalyticsService) AggregateDay(ctx context.Context, from, to time.Time) (*DaySummary, error) {
	orders, err := s.orders.FindCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to scan orders for aggregation")
	}
	payments, err := s.payments.FindCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to scan payments for aggregation")
	}

	summary := &DaySummary{
		Payments: domain.PaymentBreakdown{
			ByStatus: make(map[string]int),
			ByMethod: make(map[string]int),
		},
	}

	revenue := decimal.Zero
	profit := decimal.Zero

	// Partner and product groups keep first-seen order so that top-N
	// ties resolve by insertion order.
	partnerIdx := make(map[uuid.UUID]int)
	productIdx := make(map[uuid.UUID]int)

	var deliveryMinutes float64
	var deliveredWithTimes int

	for _, order := range orders {
		revenue = revenue.Add(order.TotalAmount)
		profit = profit.Add(order.NetProfit)

		i, ok := partnerIdx[order.PartnerID]
		if !ok {
			i = len(summary.Partners)
			partnerIdx[order.PartnerID] = i
			summary.Partners = append(summary.Partners, domain.PartnerSales{
				PartnerID:  order.PartnerID,
				Revenue:    decimal.Zero,
				Commission: decimal.Zero,
				Payout:     decimal.Zero,
			})
		}
		summary.Partners[i].Orders++
		summary.Partners[i].Revenue = summary.Partners[i].Revenue.Add(order.TotalAmount)
		summary.Partners[i].Commission = summary.Partners[i].Commission.Add(order.CommissionAmount)
		summary.Partners[i].Payout = summary.Partners[i].Payout.Add(order.PartnerPayout)

		for _, item := range order.Items {
			j, ok := productIdx[item.ProductID]
			if !ok {
				j = len(summary.TopProducts)
				productIdx[item.ProductID] = j
				summary.TopProducts = append(summary.TopProducts, domain.ProductSales{
					ProductID: item.ProductID,
					Name:      item.Name,
					Revenue:   decimal.Zero,
				})
			}
			summary.TopProducts[j].Quantity += item.Quantity
			summary.TopProducts[j].Revenue = summary.TopProducts[j].Revenue.Add(item.LineTotal)
		}

		switch order.Status {
		case domain.StatusDelivered:
			summary.Operational.Delivered++
			if order.DeliveredAt != nil {
				deliveryMinutes += order.DeliveredAt.Sub(order.CreatedAt).Minutes()
				deliveredWithTimes++
			}
		case domain.StatusCancelled:
			summary.Operational.Cancelled++
		case domain.StatusFailed:
			summary.Operational.Failed++
		}
	}

	if deliveredWithTimes > 0 {
		summary.Operational.AvgDeliveryMinutes = deliveryMinutes / float64(deliveredWithTimes)
	}

	summary.Sales = domain.SalesSummary{
		TotalOrders:       len(orders),
		TotalRevenue:      revenue,
		TotalProfit:       profit,
		AverageOrderValue: averageOrderValue(revenue, len(orders)),
		ProfitMargin:      domain.Ratio(profit, revenue),
	}

	summary.TopPartners = topPartners(summary.Partners, topPartnerCount)
	summary.TopProducts = topProducts(summary.TopProducts, topPartnerCount)

	for _, payment := range payments {
		summary.Payments.ByStatus[string(payment.Status)]++
		summary.Payments.ByMethod[payment.Method]++
	}

	return summary, nil
}

// QueryRevenueTrend buckets delivered orders over the query window and
// computes bucket-over-bucket growth
func (s *AnalyticsService) QueryRevenueTrend(ctx context.Context, query TrendQuery) (*RevenueTrend, error) {
	ctx, span := s.tracer.Start(ctx, "AnalyticsService.QueryRevenueTrend")
	defer span.End()

	if !query.Granularity.IsValid() {
		return nil, platformErrors.NewValidation(fmt.Sprintf("unknown granularity: %s", query.Granularity))
	}

	from, to, err := s.resolveWindow(query)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("granularity", string(query.Granularity)),
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)),
	)

	orders, err := s.orders.FindDeliveredBetween(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, platformErrors.Wrap(err, "failed to scan delivered orders")
	}

	trend := &RevenueTrend{
		Granularity: query.Granularity,
		From:        from,
		To:          to,
	}

	// A contiguous bucket sequence covers the window even where no
	// orders landed, so growth rates line up across gaps.
	for start := query.Granularity.BucketStart(from, s.location); start.Before(to); start = query.Granularity.Next(start) {
		trend.Buckets = append(trend.Buckets, TrendBucket{
			Start:           start,
			End:             query.Granularity.Next(start),
			GrossRevenue:    decimal.Zero,
			NetRevenue:      decimal.Zero,
			Commission:      decimal.Zero,
			DeliveryCost:    decimal.Zero,
			TransactionFees: decimal.Zero,
			Profit:          decimal.Zero,
			GrowthRate:      decimal.Zero,
		})
	}

	for _, order := range orders {
		if order.DeliveredAt == nil {
			continue
		}
		start := query.Granularity.BucketStart(*order.DeliveredAt, s.location)
		i := sort.Search(len(trend.Buckets), func(i int) bool {
			return !trend.Buckets[i].Start.Before(start)
		})
		if i >= len(trend.Buckets) || !trend.Buckets[i].Start.Equal(start) {
			continue
		}
		b := &trend.Buckets[i]
		b.Orders++
		b.GrossRevenue = b.GrossRevenue.Add(order.GrossRevenue)
		b.Commission = b.Commission.Add(order.CommissionAmount)
		b.DeliveryCost = b.DeliveryCost.Add(order.DeliveryCost)
		b.TransactionFees = b.TransactionFees.Add(order.TransactionFees)
		b.Profit = b.Profit.Add(order.NetProfit)
		b.NetRevenue = b.GrossRevenue.Sub(b.DeliveryCost).Sub(b.TransactionFees)
	}

	for i := range trend.Buckets {
		if i == 0 {
			continue
		}
		prev := trend.Buckets[i-1].GrossRevenue
		if prev.IsNegative() {
			err := fmt.Errorf("%w: negative revenue %s in bucket %s",
				domain.ErrInconsistentLedger, prev, trend.Buckets[i-1].Start.Format(time.RFC3339))
			span.RecordError(err)
			return nil, err
		}
		if prev.IsZero() {
			continue
		}
		trend.Buckets[i].GrowthRate = domain.Ratio(trend.Buckets[i].GrossRevenue.Sub(prev), prev)
	}

	totalRevenue := decimal.Zero
	totalProfit := decimal.Zero
	totalOrders := 0
	for _, b := range trend.Buckets {
		totalOrders += b.Orders
		totalRevenue = totalRevenue.Add(b.GrossRevenue)
		totalProfit = totalProfit.Add(b.Profit)
	}
	trend.Summary = TrendSummary{
		TotalOrders:       totalOrders,
		TotalRevenue:      totalRevenue,
		TotalProfit:       totalProfit,
		AverageOrderValue: averageOrderValue(totalRevenue, totalOrders),
	}

	s.metrics.IncrementCounter("trend_queries_total", map[string]string{
		"granularity": string(query.Granularity),
	})
	return trend, nil
}

func (s *AnalyticsService) resolveWindow(query TrendQuery) (time.Time, time.Time, error) {
	if query.LastDays > 0 {
		to := time.Now().In(s.location)
		return to.AddDate(0, 0, -query.LastDays), to, nil
	}
	if query.From.IsZero() || query.To.IsZero() {
		return time.Time{}, time.Time{}, platformErrors.NewValidation("trend query needs last_days or an explicit range")
	}
	if !query.From.Before(query.To) {
		return time.Time{}, time.Time{}, platformErrors.NewValidation("trend range start must precede end")
	}
	return query.From.In(s.location), query.To.In(s.location), nil
}

func averageOrderValue(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(orders))).Round(2)
}

// topPartners returns the n highest-revenue partners. The sort is
// stable over first-seen order, which is the tie-break rule.
func topPartners(partners []domain.PartnerSales, n int) []domain.PartnerSales {
	top := make([]domain.PartnerSales, len(partners))
	copy(top, partners)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Revenue.GreaterThan(top[j].Revenue)
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

func topProducts(products []domain.ProductSales, n int) []domain.ProductSales {
	top := make([]domain.ProductSales, len(products))
	copy(top, products)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Revenue.GreaterThan(top[j].Revenue)
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
