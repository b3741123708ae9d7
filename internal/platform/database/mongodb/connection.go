package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI            string        `json:"uri"`
	Database       string        `json:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	QueryTimeout   time.Duration `json:"query_timeout"`
	MaxPoolSize    uint64        `json:"max_pool_size"`
	MinPoolSize    uint64        `json:"min_pool_size"`
	MaxIdleTime    time.Duration `json:"max_idle_time"`
}

// Connection manages a MongoDB database handle
type Connection struct {
	Client   *mongo.Client
	Database *mongo.Database
	config   Config
	logger   logging.Logger
}

// NewConnection connects to MongoDB and verifies the connection
func NewConnection(config Config, logger logging.Logger) (*Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetConnectTimeout(config.ConnectTimeout).
		SetServerSelectionTimeout(config.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	logger.Info(ctx, "MongoDB connection established", map[string]interface{}{
		"database":      config.Database,
		"max_pool_size": config.MaxPoolSize,
	})

	return &Connection{
		Client:   client,
		Database: client.Database(config.Database),
		config:   config,
		logger:   logger,
	}, nil
}

// Close disconnects the client
func (c *Connection) Close() error {
	if c.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "failed to disconnect from MongoDB")
	}
	c.logger.Info(nil, "MongoDB connection closed")
	return nil
}

// HealthCheck pings the primary
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "MongoDB health check failed")
	}
	return nil
}
