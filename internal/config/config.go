package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ledger service
type Config struct {
	Server        ServerConfig        `json:"server"`
	Mongo         MongoConfig         `json:"mongo"`
	Redis         RedisConfig         `json:"redis"`
	Kafka         KafkaConfig         `json:"kafka"`
	Reporting     ReportingConfig     `json:"reporting"`
	Settlement    SettlementConfig    `json:"settlement"`
	Observability ObservabilityConfig `json:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI            string        `json:"uri"`
	Database       string        `json:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	QueryTimeout   time.Duration `json:"query_timeout"`
	MaxPoolSize    uint64        `json:"max_pool_size"`
	MinPoolSize    uint64        `json:"min_pool_size"`
	MaxIdleTime    time.Duration `json:"max_idle_time"`
}

// RedisConfig holds Redis configuration for the report cache
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MaxRetries   int           `json:"max_retries"`
	RollupTTL    time.Duration `json:"rollup_ttl"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers                []string      `json:"brokers"`
	GatewayEventsTopic     string        `json:"gateway_events_topic"`
	OrderEventsTopic       string        `json:"order_events_topic"`
	ConsumerGroup          string        `json:"consumer_group"`
	ProducerRetries        int           `json:"producer_retries"`
	ConsumerSessionTimeout time.Duration `json:"consumer_session_timeout"`
	EventHandleTimeout     time.Duration `json:"event_handle_timeout"`
}

// ReportingConfig holds analytics configuration.
// Timezone is the fixed reporting timezone for daily bucket boundaries;
// all rollup dates are interpreted in this location, never server-local.
type ReportingConfig struct {
	Timezone string `json:"timezone"`
}

// SettlementConfig holds settlement batch configuration
type SettlementConfig struct {
	ItemTimeout time.Duration `json:"item_timeout"`
}

// ObservabilityConfig holds logging/metrics/tracing configuration
type ObservabilityConfig struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	MetricsEnabled bool   `json:"metrics_enabled"`
	TracingEnabled bool   `json:"tracing_enabled"`
	LogLevel       string `json:"log_level"`
	OTELEndpoint   string `json:"otel_endpoint"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "120s"),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "zlift_ledger"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", "30s"),
			QueryTimeout:   getEnvAsDuration("MONGO_QUERY_TIMEOUT", "30s"),
			MaxPoolSize:    uint64(getEnvAsInt("MONGO_MAX_POOL_SIZE", 100)),
			MinPoolSize:    uint64(getEnvAsInt("MONGO_MIN_POOL_SIZE", 5)),
			MaxIdleTime:    getEnvAsDuration("MONGO_MAX_IDLE_TIME", "5m"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", "5s"),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", "3s"),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", "3s"),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			RollupTTL:    getEnvAsDuration("REDIS_ROLLUP_TTL", "24h"),
		},
		Kafka: KafkaConfig{
			Brokers:                getEnvAsSlice("KAFKA_BROKERS", "localhost:9092"),
			GatewayEventsTopic:     getEnv("KAFKA_GATEWAY_EVENTS_TOPIC", "gateway-events"),
			OrderEventsTopic:       getEnv("KAFKA_ORDER_EVENTS_TOPIC", "order-events"),
			ConsumerGroup:          getEnv("KAFKA_CONSUMER_GROUP", "ledger-service"),
			ProducerRetries:        getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
			ConsumerSessionTimeout: getEnvAsDuration("KAFKA_CONSUMER_SESSION_TIMEOUT", "30s"),
			EventHandleTimeout:     getEnvAsDuration("KAFKA_EVENT_HANDLE_TIMEOUT", "10s"),
		},
		Reporting: ReportingConfig{
			Timezone: getEnv("REPORTING_TIMEZONE", "UTC"),
		},
		Settlement: SettlementConfig{
			ItemTimeout: getEnvAsDuration("SETTLEMENT_ITEM_TIMEOUT", "5s"),
		},
		Observability: ObservabilityConfig{
			ServiceName:    getEnv("SERVICE_NAME", "ledger-service"),
			ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", true),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			OTELEndpoint:   getEnv("OTEL_ENDPOINT", "localhost:4317"),
		},
	}

	if _, err := time.LoadLocation(config.Reporting.Timezone); err != nil {
		return nil, fmt.Errorf("invalid REPORTING_TIMEZONE %q: %w", config.Reporting.Timezone, err)
	}

	return config, nil
}

// Location resolves the configured reporting timezone
func (c ReportingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsSlice(key string, defaultValue string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return strings.Split(defaultValue, ",")
}
