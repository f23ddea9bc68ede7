// Package audit turns lifecycle notifications from the broker into audit
// trail entries.
package audit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
)

type Sink interface {
	LogNotification(ctx context.Context, n domain.Notification) error
}

type Consumer struct {
	sink   Sink
	logger observability.Logger
}

func NewConsumer(sink Sink, logger observability.Logger) *Consumer {
	return &Consumer{sink: sink, logger: logger}
}

// Run handles deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle acks a recorded delivery. Malformed payloads are dropped; sink
// failures are requeued once, then dropped.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.logger.WithError(err).WithField("message_id", d.MessageId).Warn("dropping malformed notification")
		_ = d.Nack(false, false)
		return
	}
	if err := c.sink.LogNotification(ctx, n); err != nil {
		c.logger.WithError(err).WithField("message_id", d.MessageId).Error("failed to record notification")
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}
