package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sanketyelugotla/zlift-ledger/internal/config"
	"github.com/sanketyelugotla/zlift-ledger/internal/messaging/kafka"
	mongoDB "github.com/sanketyelugotla/zlift-ledger/internal/platform/database/mongodb"
	redisDB "github.com/sanketyelugotla/zlift-ledger/internal/platform/database/redis"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/metrics"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/tracing"
	"github.com/sanketyelugotla/zlift-ledger/internal/repository/mongodb"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
	"github.com/sanketyelugotla/zlift-ledger/internal/transport/http"
	"github.com/sanketyelugotla/zlift-ledger/internal/transport/http/handlers"
)

const (
	serviceName    = "ledger-service"
	serviceVersion = "1.0.0"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewServiceLogger(serviceName, serviceVersion, cfg.Observability.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info(ctx, "Starting Ledger Service", map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
	})

	metricsCollector, err := metrics.NewMetrics(serviceName)
	if err != nil {
		logger.Error(ctx, "Failed to create metrics", err)
		os.Exit(1)
	}

	var tracer tracing.Tracer
	if cfg.Observability.TracingEnabled {
		tracer, err = tracing.NewTracer(serviceName, serviceVersion, cfg.Observability.OTELEndpoint)
		if err != nil {
			logger.Error(ctx, "Failed to create tracer", err)
			os.Exit(1)
		}
	} else {
		logger.Info(ctx, "Tracing disabled, using no-op tracer")
		tracer = tracing.NewNoOpTracer()
	}
	defer tracer.Close()

	logger.Info(ctx, "Connecting to MongoDB...")
	mongoConn, err := mongoDB.NewConnection(mongoDB.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		QueryTimeout:   cfg.Mongo.QueryTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MinPoolSize:    cfg.Mongo.MinPoolSize,
		MaxIdleTime:    cfg.Mongo.MaxIdleTime,
	}, logger)
	if err != nil {
		logger.Error(ctx, "Failed to connect to MongoDB", err)
		os.Exit(1)
	}
	defer mongoConn.Close()

	logger.Info(ctx, "Connecting to Redis...")
	redisConn, err := redisDB.NewConnection(redisDB.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		MaxRetries:   cfg.Redis.MaxRetries,
	}, logger)
	if err != nil {
		logger.Error(ctx, "Failed to connect to Redis", err)
		os.Exit(1)
	}
	defer redisConn.Close()

	logger.Info(ctx, "Initializing repositories...")
	orderRepo, err := mongodb.NewOrderRepository(mongoConn.Database, cfg.Mongo.QueryTimeout)
	if err != nil {
		logger.Error(ctx, "Failed to create order repository", err)
		os.Exit(1)
	}
	paymentRepo, err := mongodb.NewPaymentRepository(mongoConn.Database, cfg.Mongo.QueryTimeout)
	if err != nil {
		logger.Error(ctx, "Failed to create payment repository", err)
		os.Exit(1)
	}
	rollupRepo, err := mongodb.NewRollupRepository(mongoConn.Database, cfg.Mongo.QueryTimeout)
	if err != nil {
		logger.Error(ctx, "Failed to create rollup repository", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(
		cfg.Kafka.Brokers,
		cfg.Kafka.OrderEventsTopic,
		cfg.Kafka.ProducerRetries,
		logger,
	)
	if err != nil {
		logger.Error(ctx, "Failed to create Kafka producer", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	logger.Info(ctx, "Initializing services...")
	financeCalculator := service.NewFinanceCalculator()
	orderService := service.NewOrderService(orderRepo, paymentRepo, financeCalculator, kafkaProducer, logger, metricsCollector)
	reconciler := service.NewReconcilerService(paymentRepo, orderRepo, orderService, cfg.Settlement.ItemTimeout, logger, metricsCollector)
	orderService.AttachReconciler(reconciler)

	reportingLocation := cfg.Reporting.Location()
	analyticsService := service.NewAnalyticsService(orderRepo, paymentRepo, rollupRepo, reportingLocation, logger, metricsCollector)
	reportService := service.NewReportService(rollupRepo, analyticsService, redisConn.Client, cfg.Redis.RollupTTL, reportingLocation, logger, metricsCollector)

	logger.Info(ctx, "Initializing Kafka consumer...")
	kafkaConsumer, err := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.GatewayEventsTopic},
		reconciler,
		cfg.Kafka.EventHandleTimeout,
		logger,
	)
	if err != nil {
		logger.Error(ctx, "Failed to create Kafka consumer", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	logger.Info(ctx, "Initializing HTTP server...")
	orderHandler := handlers.NewOrderHandler(orderService, logger)
	paymentHandler := handlers.NewPaymentHandler(reconciler, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, reportService, logger)

	httpServer := http.NewServer(
		cfg.Server,
		orderHandler,
		paymentHandler,
		analyticsHandler,
		map[string]http.HealthChecker{
			"mongodb": mongoConn,
			"redis":   redisConn,
		},
		logger,
		metricsCollector,
	)

	var wg sync.WaitGroup
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := kafkaConsumer.Start(ctx); err != nil {
			logger.Error(ctx, "Kafka consumer failed", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Start(ctx); err != nil {
			logger.Error(ctx, "HTTP server failed", err)
		}
	}()

	logger.Info(ctx, "Ledger Service started successfully", map[string]interface{}{
		"http_address": fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"mongodb":      cfg.Mongo.Database,
		"kafka":        cfg.Kafka.Brokers,
		"timezone":     cfg.Reporting.Timezone,
	})

	<-shutdownCh
	logger.Info(ctx, "Shutdown signal received, stopping service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Failed to stop HTTP server", err)
	}

	wg.Wait()

	logger.Info(ctx, "Ledger Service stopped successfully")
}
