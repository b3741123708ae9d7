package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
)

// Producer publishes order lifecycle events to Kafka
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   logging.Logger
}

// NewProducer creates a new Kafka producer for order events
func NewProducer(brokers []string, topic string, retries int, logger logging.Logger) (*Producer, error) {
	config := sarama.NewConfig()

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = retries
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Flush.Messages = 100

	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // required for the idempotent producer

	// Partition by order ID so one order's events stay ordered
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to create Kafka producer")
	}

	logger.Info(nil, "Kafka producer created successfully", map[string]interface{}{
		"brokers": brokers,
		"topic":   topic,
		"retries": retries,
	})

	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}, nil
}

// PublishOrderStatusChanged publishes an order status change event
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, event service.OrderStatusChangedEvent) error {
	message := OrderStatusChangedMessage{
		OrderStatusChangedEvent: event,
		EventMetadata: EventMetadata{
			EventID:   uuid.New().String(),
			EventType: "order.status.changed",
			EventTime: time.Now().UTC(),
			Version:   "1.0",
			Source:    "ledger-service",
		},
	}

	data, err := json.Marshal(message)
	if err != nil {
		return platformErrors.Wrap(err, "failed to marshal order status event")
	}

	kafkaMessage := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.OrderID.String()),
		Value:     sarama.ByteEncoder(data),
		Timestamp: message.EventMetadata.EventTime,
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event-type"),
				Value: []byte(message.EventMetadata.EventType),
			},
			{
				Key:   []byte("event-id"),
				Value: []byte(message.EventMetadata.EventID),
			},
			{
				Key:   []byte("order-id"),
				Value: []byte(event.OrderID.String()),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(kafkaMessage)
	if err != nil {
		p.logger.Error(ctx, "Failed to publish order status event", err, map[string]interface{}{
			"order_id": event.OrderID,
			"event_id": message.EventMetadata.EventID,
			"topic":    p.topic,
		})
		return platformErrors.Wrap(err, "failed to publish order status event")
	}

	p.logger.Info(ctx, "Order status event published", map[string]interface{}{
		"order_id":   event.OrderID,
		"event_id":   message.EventMetadata.EventID,
		"old_status": event.OldStatus,
		"new_status": event.NewStatus,
		"partition":  partition,
		"offset":     offset,
	})
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error(nil, "Failed to close Kafka producer", err)
			return err
		}
		p.logger.Info(nil, "Kafka producer closed successfully")
	}
	return nil
}

// EventMetadata contains common metadata for all published events
type EventMetadata struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	EventTime time.Time `json:"event_time"`
	Version   string    `json:"version"`
	Source    string    `json:"source"`
}

// OrderStatusChangedMessage is an order status event with metadata
type OrderStatusChangedMessage struct {
	service.OrderStatusChangedEvent
	EventMetadata EventMetadata `json:"metadata"`
}

var _ service.MessageProducer = (*Producer)(nil)
