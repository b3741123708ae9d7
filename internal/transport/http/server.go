package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sanketyelugotla/zlift-ledger/internal/config"
	"github.com/sanketyelugotla/zlift-ledger/internal/transport/http/handlers"
	customMiddleware "github.com/sanketyelugotla/zlift-ledger/internal/transport/http/middleware"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/metrics"
)

// HealthChecker reports the readiness of a backing dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the HTTP transport for the ledger service
type Server struct {
	server           *http.Server
	router           *chi.Mux
	logger           logging.Logger
	metrics          metrics.Metrics
	orderHandler     *handlers.OrderHandler
	paymentHandler   *handlers.PaymentHandler
	analyticsHandler *handlers.AnalyticsHandler
	dependencies     map[string]HealthChecker
	config           config.ServerConfig
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	dependencies map[string]HealthChecker,
	logger logging.Logger,
	metrics metrics.Metrics,
) *Server {
	server := &Server{
		logger:           logger,
		metrics:          metrics,
		orderHandler:     orderHandler,
		paymentHandler:   paymentHandler,
		analyticsHandler: analyticsHandler,
		dependencies:     dependencies,
		config:           cfg,
	}

	server.setupRoutes()
	server.setupServer()

	return server
}

// setupRoutes configures all the routes and middleware
func (s *Server) setupRoutes() {
	s.router = chi.NewRouter()

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(customMiddleware.RecoveryMiddleware(s.logger))
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(customMiddleware.LoggingMiddleware(s.logger))
	s.router.Use(customMiddleware.TracingMiddleware("ledger-service"))
	s.router.Use(customMiddleware.MetricsMiddleware(s.metrics))
	s.router.Use(customMiddleware.SecurityHeadersMiddleware())
	s.router.Use(customMiddleware.CORSMiddleware([]string{"*"}))
	s.router.Use(customMiddleware.ContentTypeMiddleware())

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/live", s.handleLive)

	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupOrderRoutes(r)
		s.setupPaymentRoutes(r)
		s.setupAnalyticsRoutes(r)
	})
}

func (s *Server) setupOrderRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.orderHandler.CreateOrder)
		r.Get("/", s.orderHandler.ListOrders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.orderHandler.GetOrder)
			r.Post("/transition", s.orderHandler.Transition)
			r.Post("/recompute", s.orderHandler.Recompute)
		})
	})
}

func (s *Server) setupPaymentRoutes(r chi.Router) {
	r.Post("/payments/{id}/refund", s.paymentHandler.Refund)
	r.Post("/settlements", s.paymentHandler.Settle)
}

func (s *Server) setupAnalyticsRoutes(r chi.Router) {
	r.Route("/rollups/{date}", func(r chi.Router) {
		r.Post("/", s.analyticsHandler.BuildRollup)
		r.Get("/", s.analyticsHandler.GetRollup)
		r.Delete("/", s.analyticsHandler.DeleteRollup)
	})
	r.Get("/analytics/revenue-trend", s.analyticsHandler.RevenueTrend)
	r.Get("/reports/dashboard", s.analyticsHandler.Dashboard)
}

// setupServer configures the HTTP server
func (s *Server) setupServer() {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting HTTP server", map[string]interface{}{
		"address":       s.server.Addr,
		"read_timeout":  s.config.ReadTimeout,
		"write_timeout": s.config.WriteTimeout,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "Stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, "Failed to gracefully shutdown HTTP server", err)
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info(ctx, "HTTP server stopped successfully")
	return nil
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "ledger-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady checks each backing dependency and reports per-dependency
// status. Any failure makes the whole probe report 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	checks := make(map[string]string, len(s.dependencies))
	for name, dep := range s.dependencies {
		if err := dep.HealthCheck(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "healthy"
		}
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(nil, "Failed to write health response", err)
	}
}
