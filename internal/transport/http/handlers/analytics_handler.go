package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanketyelugotla/zlift-ledger/internal/domain"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
)

// dateLayout is the calendar-date format used in URLs and queries
const dateLayout = "2006-01-02"

// AnalyticsHandler handles HTTP requests for rollups, trends and
// dashboards
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	reports   *service.ReportService
	logger    logging.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *service.AnalyticsService, reports *service.ReportService, logger logging.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		reports:   reports,
		logger:    logger,
	}
}

// BuildRollup handles POST /rollups/{date}
func (h *AnalyticsHandler) BuildRollup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD", err)
		return
	}

	rollup, err := h.analytics.BuildDailyRollup(ctx, date)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, rollup)
}

// GetRollup handles GET /rollups/{date}
func (h *AnalyticsHandler) GetRollup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD", err)
		return
	}

	rollup, err := h.reports.GetDailyRollup(ctx, date)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rollup)
}

// DeleteRollup handles DELETE /rollups/{date}
func (h *AnalyticsHandler) DeleteRollup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD", err)
		return
	}

	if err := h.analytics.DeleteDailyRollup(ctx, date); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevenueTrend handles GET /analytics/revenue-trend
func (h *AnalyticsHandler) RevenueTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := service.TrendQuery{
		Granularity: domain.GranularityDay,
	}
	if g := r.URL.Query().Get("granularity"); g != "" {
		query.Granularity = domain.Granularity(g)
	}
	if days := r.URL.Query().Get("last_days"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "last_days must be a positive integer", err)
			return
		}
		query.LastDays = parsed
	}
	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD", err)
			return
		}
		query.From = parsed
	}
	if to := r.URL.Query().Get("to"); to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD", err)
			return
		}
		query.To = parsed
	}

	trend, err := h.analytics.QueryRevenueTrend(ctx, query)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, trend)
}

// Dashboard handles GET /reports/dashboard
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Default window: the last 7 days including today
	to := time.Now()
	from := to.AddDate(0, 0, -6)

	if f := r.URL.Query().Get("from"); f != "" {
		parsed, err := time.Parse(dateLayout, f)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD", err)
			return
		}
		from = parsed
	}
	if t := r.URL.Query().Get("to"); t != "" {
		parsed, err := time.Parse(dateLayout, t)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD", err)
			return
		}
		to = parsed
	}

	dashboard, err := h.reports.GetDashboard(ctx, from, to)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}
