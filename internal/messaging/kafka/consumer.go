package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	platformErrors "github.com/sanketyelugotla/zlift-ledger/internal/platform/errors"
	"github.com/sanketyelugotla/zlift-ledger/internal/platform/observability/logging"
	"github.com/sanketyelugotla/zlift-ledger/internal/service"
)

// PaymentReconciler is the slice of the reconciler the consumer needs
type PaymentReconciler interface {
	OnPaymentCompleted(ctx context.Context, event service.GatewayPaymentEvent) error
	OnPaymentFailed(ctx context.Context, event service.GatewayPaymentEvent) error
}

// Consumer consumes payment gateway events from Kafka
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       *ConsumerHandler
	logger        logging.Logger
}

// NewConsumer creates a new Kafka consumer for gateway events.
// handleTimeout bounds the processing of a single event.
func NewConsumer(brokers []string, groupID string, topics []string, reconciler PaymentReconciler, handleTimeout time.Duration, logger logging.Logger) (*Consumer, error) {
	config := sarama.NewConfig()

	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	config.Consumer.Return.Errors = true

	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, platformErrors.Wrap(err, "failed to create Kafka consumer group")
	}

	handler := &ConsumerHandler{
		reconciler:    reconciler,
		handleTimeout: handleTimeout,
		logger:        logger,
	}

	logger.Info(nil, "Kafka consumer created successfully", map[string]interface{}{
		"brokers":  brokers,
		"group_id": groupID,
		"topics":   topics,
	})

	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        topics,
		handler:       handler,
		logger:        logger,
	}, nil
}

// Start starts consuming messages in a blocking manner
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info(ctx, "Starting Kafka consumer", map[string]interface{}{
		"topics": c.topics,
	})

	go c.handleErrors(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "Kafka consumer context cancelled")
			return nil
		default:
			if err := c.consumerGroup.Consume(ctx, c.topics, c.handler); err != nil {
				c.logger.Error(ctx, "Error consuming from Kafka", err)

				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					c.logger.Info(ctx, "Consumer group closed, stopping consumer")
					return nil
				}

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(5 * time.Second):
					c.logger.Info(ctx, "Retrying Kafka consumer connection")
					continue
				}
			}
		}
	}
}

// handleErrors processes consumer errors in the background
func (c *Consumer) handleErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case consumerErr := <-c.consumerGroup.Errors():
			if consumerErr != nil {
				if saramaErr, ok := consumerErr.(*sarama.ConsumerError); ok {
					c.logger.Error(ctx, "Kafka consumer error", consumerErr, map[string]interface{}{
						"topic":     saramaErr.Topic,
						"partition": saramaErr.Partition,
					})
				} else {
					c.logger.Error(ctx, "Kafka consumer error", consumerErr)
				}
			}
		}
	}
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	if c.consumerGroup != nil {
		if err := c.consumerGroup.Close(); err != nil {
			c.logger.Error(nil, "Failed to close Kafka consumer", err)
			return err
		}
		c.logger.Info(nil, "Kafka consumer closed successfully")
	}
	return nil
}

// ConsumerHandler implements sarama.ConsumerGroupHandler
type ConsumerHandler struct {
	reconciler    PaymentReconciler
	handleTimeout time.Duration
	logger        logging.Logger
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (h *ConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info(nil, "Kafka consumer session setup")
	return nil
}

// Cleanup is run at the end of a session
func (h *ConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info(nil, "Kafka consumer session cleanup")
	return nil
}

// ConsumeClaim consumes messages from one claim. A failed event is
// logged and its offset is still committed; recovery relies on the
// gateway re-sending unacknowledged notifications and the handlers
// being idempotent.
func (h *ConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := h.handleMessage(session.Context(), message); err != nil {
				h.logger.Error(session.Context(), "Failed to handle message", err, map[string]interface{}{
					"topic":     message.Topic,
					"partition": message.Partition,
					"offset":    message.Offset,
					"key":       string(message.Key),
				})
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage dispatches one gateway event by its event-type header.
// Unknown event types are logged and dropped, not errors.
func (h *ConsumerHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.handleTimeout)
	defer cancel()

	eventType := h.getHeaderValue(message.Headers, "event-type")
	eventID := h.getHeaderValue(message.Headers, "event-id")

	h.logger.Debug(ctx, "Processing gateway event", map[string]interface{}{
		"event_type": eventType,
		"event_id":   eventID,
		"offset":     message.Offset,
	})

	switch eventType {
	case "payment.completed":
		return h.handlePaymentEvent(ctx, message.Value, eventID, h.reconciler.OnPaymentCompleted)
	case "payment.failed":
		return h.handlePaymentEvent(ctx, message.Value, eventID, h.reconciler.OnPaymentFailed)
	default:
		h.logger.Warn(ctx, "Unknown event type received", map[string]interface{}{
			"event_type": eventType,
			"event_id":   eventID,
		})
		return nil
	}
}

func (h *ConsumerHandler) handlePaymentEvent(ctx context.Context, data []byte, eventID string, apply func(context.Context, service.GatewayPaymentEvent) error) error {
	var payload GatewayEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return platformErrors.Wrap(err, "failed to unmarshal gateway event")
	}

	event, err := payload.toServiceEvent()
	if err != nil {
		return err
	}

	if err := apply(ctx, event); err != nil {
		return platformErrors.Wrap(err, "failed to apply gateway event")
	}

	h.logger.Info(ctx, "Gateway event processed", map[string]interface{}{
		"event_id":   eventID,
		"payment_id": event.PaymentID,
	})
	return nil
}

// getHeaderValue extracts a header value from Kafka message headers
func (h *ConsumerHandler) getHeaderValue(headers []*sarama.RecordHeader, key string) string {
	for _, header := range headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

// GatewayEventPayload is the wire form of a payment gateway event
type GatewayEventPayload struct {
	EventID              string    `json:"event_id"`
	EventType            string    `json:"event_type"`
	EventTime            time.Time `json:"event_time"`
	Source               string    `json:"source"`
	PaymentID            string    `json:"payment_id"`
	GatewayTransactionID string    `json:"gateway_transaction_id"`
	Response             string    `json:"response"`
	TransactionFees      string    `json:"transaction_fees"`
}

func (p *GatewayEventPayload) toServiceEvent() (service.GatewayPaymentEvent, error) {
	// Gateway retries sometimes carry only the gateway transaction id;
	// the reconciler resolves those to a payment.
	var paymentID uuid.UUID
	var err error
	if p.PaymentID != "" {
		paymentID, err = uuid.Parse(p.PaymentID)
		if err != nil {
			return service.GatewayPaymentEvent{}, platformErrors.Wrap(err, "invalid payment ID in gateway event")
		}
	} else if p.GatewayTransactionID == "" {
		return service.GatewayPaymentEvent{}, platformErrors.NewValidation("gateway event carries no payment reference")
	}

	fees := decimal.Zero
	if p.TransactionFees != "" {
		fees, err = decimal.NewFromString(p.TransactionFees)
		if err != nil {
			return service.GatewayPaymentEvent{}, platformErrors.Wrap(err, "invalid transaction fees in gateway event")
		}
	}

	return service.GatewayPaymentEvent{
		PaymentID:            paymentID,
		GatewayTransactionID: p.GatewayTransactionID,
		Response:             p.Response,
		TransactionFees:      fees,
		OccurredAt:           p.EventTime,
	}, nil
}
