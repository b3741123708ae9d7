package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
)

// Config holds Redis connection configuration
type Config struct {
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
}

// Address returns the host:port address string
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Connection manages the Redis client
type Connection struct {
	Client *redis.Client
	config Config
	logger logging.Logger
}

// NewConnection creates a Redis client and verifies connectivity
func NewConnection(config Config, logger logging.Logger) (*Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Address(),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		MaxRetries:   config.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping Redis")
	}

	logger.Info(ctx, "Redis connection established", map[string]interface{}{
		"address": config.Address(),
		"db":      config.DB,
	})

	return &Connection{Client: client, config: config, logger: logger}, nil
}

// Close closes the client
func (c *Connection) Close() error {
	if c.Client == nil {
		return nil
	}
	if err := c.Client.Close(); err != nil {
		return errors.Wrap(err, "failed to close Redis connection")
	}
	c.logger.Info(nil, "Redis connection closed")
	return nil
}

// HealthCheck pings the server
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "Redis health check failed")
	}
	return nil
}
