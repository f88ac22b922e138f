package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks, reconnecting with backoff, until ctx is done.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler BookingEventHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := redialMin
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = redialMin
			continue
		}

		c.logger.Warn("booking event consumer interrupted, reconnecting",
			zap.String("queue", queue),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, redialMax)
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler BookingEventHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery acks handled events, rejects malformed ones to the DLQ and
// requeues events whose handling failed for a reason that may clear up.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler BookingEventHandler) error {
	var msg BookingEventMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting booking event: invalid JSON",
			zap.Error(err),
			zap.String("messageId", d.MessageId),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid message: %w", rejectErr)
		}
		return nil
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting booking event: validation failed",
			zap.Error(err),
			zap.String("bookingId", msg.BookingID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}

	ctx = observability.WithCorrelationID(ctx, correlationID(d, msg))

	if err := handler(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.logger.Warn("rejecting booking event: handler refused it",
				zap.Error(err),
				zap.String("bookingId", msg.BookingID),
			)
			if rejectErr := d.Reject(false); rejectErr != nil {
				return fmt.Errorf("failed to reject refused event: %w", rejectErr)
			}
			return nil
		}

		c.logger.Error("booking event handling failed, requeueing",
			zap.Error(err),
			zap.String("bookingId", msg.BookingID),
			zap.String("status", msg.Status.String()),
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

func correlationID(d amqp.Delivery, msg BookingEventMessage) string {
	switch {
	case d.CorrelationId != "":
		return d.CorrelationId
	case msg.EventID != "":
		return msg.EventID
	case d.MessageId != "":
		return d.MessageId
	default:
		return observability.NewCorrelationID("booking-event")
	}
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
