package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
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

// Day data sources reported on dashboard sections
const (
	SourceRollup = "rollup"
	SourceLive   = "live"
)

// DashboardDay is one day of a dashboard view. Stale marks a section
// whose sub-query failed; its numbers are zeroed, never missing.
type DashboardDay struct {
	Date        time.Time                 `json:"date"`
	Source      string                    `json:"source"`
	Stale       bool                      `json:"stale"`
	Sales       domain.SalesSummary       `json:"sales"`
	TopPartners []domain.PartnerSales     `json:"top_partners"`
	TopProducts []domain.ProductSales     `json:"top_products"`
	Payments    domain.PaymentBreakdown   `json:"payments"`
	Operational domain.OperationalMetrics `json:"operational"`
}

// Dashboard is the composed reporting view over a date range
type Dashboard struct {
	From   time.Time           `json:"from"`
	To     time.Time           `json:"to"`
	Days   []DashboardDay      `json:"days"`
	Totals domain.SalesSummary `json:"totals"`
}

// ReportService is a thin composition layer over rollups and live
// aggregation. Closed days come from persisted rollups through a Redis
// read-through cache; the current day and rollup gaps are aggregated
// live. It holds no state of its own.
type ReportService struct {
	rollups   interfaces.RollupRepository
	analytics *AnalyticsService
	cache     *redis.Client
	cacheTTL  time.Duration
	location  *time.Location
	logger    logging.Logger
	metrics   metrics.Metrics
	tracer    trace.Tracer
}

// NewReportService creates a new report service. cache may be nil, in
// which case every rollup read goes to the repository.
func NewReportService(
	rollups interfaces.RollupRepository,
	analytics *AnalyticsService,
	cache *redis.Client,
	cacheTTL time.Duration,
	location *time.Location,
	logger logging.Logger,
	metrics metrics.Metrics,
) *ReportService {
	return &ReportService{
		rollups:   rollups,
		analytics: analytics,
		cache:     cache,
		cacheTTL:  cacheTTL,
		location:  location,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("report-service"),
	}
}

// GetDailyRollup returns the persisted rollup for a date, read through
// the cache. A missing rollup is a not-found error for the caller.
func (s *ReportService) GetDailyRollup(ctx context.Context, date time.Time) (*domain.DailyRollup, error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.GetDailyRollup")
	defer span.End()

	dayStart := domain.DayStart(date, s.location)
	span.SetAttributes(attribute.String("date", dayStart.Format("2006-01-02")))

	if rollup := s.cachedRollup(ctx, dayStart); rollup != nil {
		s.metrics.IncrementCounter("rollup_cache_hits_total", nil)
		return rollup, nil
	}
	s.metrics.IncrementCounter("rollup_cache_misses_total", nil)

	rollup, err := s.rollups.GetByDate(ctx, dayStart)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.cacheRollup(ctx, dayStart, rollup)
	return rollup, nil
}

// GetDashboard composes the reporting view for [from, to] calendar
// days. A failed sub-query never fails the view; the affected day is
// zeroed and flagged stale.
func (s *ReportService) GetDashboard(ctx context.Context, from, to time.Time) (*Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.GetDashboard")
	defer span.End()

	fromDay := domain.DayStart(from, s.location)
	toDay := domain.DayStart(to, s.location)
	if toDay.Before(fromDay) {
		return nil, platformErrors.NewValidation("dashboard range start must not follow end")
	}

	span.SetAttributes(
		attribute.String("from", fromDay.Format("2006-01-02")),
		attribute.String("to", toDay.Format("2006-01-02")),
	)

	now := time.Now().In(s.location)
	dashboard := &Dashboard{From: fromDay, To: toDay}

	totalRevenue := decimal.Zero
	totalProfit := decimal.Zero
	totalOrders := 0

	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		entry := s.dayView(ctx, day, now)
		dashboard.Days = append(dashboard.Days, entry)

		totalOrders += entry.Sales.TotalOrders
		totalRevenue = totalRevenue.Add(entry.Sales.TotalRevenue)
		totalProfit = totalProfit.Add(entry.Sales.TotalProfit)
	}

	dashboard.Totals = domain.SalesSummary{
		TotalOrders:       totalOrders,
		TotalRevenue:      totalRevenue,
		TotalProfit:       totalProfit,
		AverageOrderValue: averageOrderValue(totalRevenue, totalOrders),
		ProfitMargin:      domain.Ratio(totalProfit, totalRevenue),
	}

	s.metrics.IncrementCounter("dashboard_queries_total", nil)
	return dashboard, nil
}

// dayView resolves one day: rollup for closed days, live aggregation
// for the open day and for rollup gaps
func (s *ReportService) dayView(ctx context.Context, day, now time.Time) DashboardDay {
	dayEnd := day.AddDate(0, 0, 1)
	closed := !dayEnd.After(now)

	if closed {
		rollup, err := s.GetDailyRollup(ctx, day)
		if err == nil {
			return DashboardDay{
				Date:        day,
				Source:      SourceRollup,
				Sales:       rollup.Sales,
				TopPartners: rollup.TopPartners,
				TopProducts: rollup.TopProducts,
				Payments:    rollup.Payments,
				Operational: rollup.Operational,
			}
		}
		if !platformErrors.IsNotFound(err) {
			s.logger.Error(ctx, "Rollup read failed, falling back to live aggregation", err, map[string]interface{}{
				"date": day.Format("2006-01-02"),
			})
		}
	}

	summary, err := s.analytics.AggregateDay(ctx, day, dayEnd)
	if err != nil {
		s.logger.Error(ctx, "Live aggregation failed, serving zeroed day", err, map[string]interface{}{
			"date": day.Format("2006-01-02"),
		})
		s.metrics.IncrementCounter("dashboard_stale_days_total", nil)
		return zeroedDay(day)
	}

	return DashboardDay{
		Date:        day,
		Source:      SourceLive,
		Sales:       summary.Sales,
		TopPartners: summary.TopPartners,
		TopProducts: summary.TopProducts,
		Payments:    summary.Payments,
		Operational: summary.Operational,
	}
}

func zeroedDay(day time.Time) DashboardDay {
	return DashboardDay{
		Date:   day,
		Source: SourceLive,
		Stale:  true,
		Sales: domain.SalesSummary{
			TotalRevenue:      decimal.Zero,
			TotalProfit:       decimal.Zero,
			AverageOrderValue: decimal.Zero,
			ProfitMargin:      decimal.Zero,
		},
		Payments: domain.PaymentBreakdown{
			ByStatus: map[string]int{},
			ByMethod: map[string]int{},
		},
	}
}

func rollupCacheKey(day time.Time) string {
	return "rollup:" + day.Format("2006-01-02")
}

func (s *ReportService) cachedRollup(ctx context.Context, day time.Time) *domain.DailyRollup {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, rollupCacheKey(day)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn(ctx, "Rollup cache read failed", map[string]interface{}{
				"date":  day.Format("2006-01-02"),
				"error": err.Error(),
			})
		}
		return nil
	}
	var rollup domain.DailyRollup
	if err := json.Unmarshal(data, &rollup); err != nil {
		s.logger.Warn(ctx, "Rollup cache entry corrupt, ignoring", map[string]interface{}{
			"date": day.Format("2006-01-02"),
		})
		return nil
	}
	return &rollup
}

func (s *ReportService) cacheRollup(ctx context.Context, day time.Time, rollup *domain.DailyRollup) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(rollup)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, rollupCacheKey(day), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn(ctx, "Rollup cache write failed", map[string]interface{}{
			"date":  day.Format("2006-01-02"),
			"error": err.Error(),
		})
	}
}
