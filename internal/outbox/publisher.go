package outbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/ticket-inventory/internal/adapters/crdb"
	"github.com/robertarktes/ticket-inventory/internal/observability"
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays outbox records to the broker. Delivery is at least once;
// consumers dedupe on MessageId.
type Publisher struct {
	store  Store
	broker Broker
	logger observability.Logger
	batch  int
}

func NewPublisher(store Store, broker Broker, logger observability.Logger, batch int) *Publisher {
	return &Publisher{store: store, broker: broker, logger: logger, batch: batch}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.WithError(err).Error("outbox relay failed")
			}
		}
	}
}

// PublishBatch relays up to one batch and returns how many records were
// published. A record the broker refuses stays NEW for the next batch.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.store.WithTx(ctx, func(ctx context.Context) error {
		records, err := p.store.GetUnpublishedOutbox(ctx, p.batch)
		if err != nil {
			return errors.Wrap(err, "load outbox")
		}
		for _, rec := range records {
			msg := amqp.Publishing{
				MessageId:   rec.DedupeKey,
				ContentType: "application/json",
				Timestamp:   rec.CreatedAt,
				Body:        rec.Payload,
			}
			if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
				p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("publish failed")
				continue
			}
			if err := p.store.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
				return errors.Wrapf(err, "mark %s published", rec.ID)
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	observability.OutboxPublished.Add(float64(published))
	return published, nil
}
