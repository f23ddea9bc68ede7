package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/ticket-inventory/internal/adapters/crdb"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/robertarktes/ticket-inventory/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records   []crdb.OutboxRecord
	published map[uuid.UUID]bool
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) GetUnpublishedOutbox(_ context.Context, limit int) ([]crdb.OutboxRecord, error) {
	var out []crdb.OutboxRecord
	for _, r := range s.records {
		if !s.published[r.ID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.published[id] = true
	return nil
}

type fakeBroker struct {
	fail map[string]bool
	sent []amqp.Publishing
	keys []string
}

func (b *fakeBroker) Publish(_ context.Context, key string, msg amqp.Publishing) error {
	if b.fail[msg.MessageId] {
		return errors.New("channel closed")
	}
	b.keys = append(b.keys, key)
	b.sent = append(b.sent, msg)
	return nil
}

func record(eventType string) crdb.OutboxRecord {
	return crdb.OutboxRecord{ID: uuid.New(), EventType: eventType, Payload: []byte(`{}`), DedupeKey: uuid.NewString(), Status: "NEW"}
}

func TestPublishBatch(t *testing.T) {
	store := &fakeStore{
		records:   []crdb.OutboxRecord{record("reservation.created"), record("reservation.confirmed"), record("booking.cancelled")},
		published: map[uuid.UUID]bool{},
	}
	broker := &fakeBroker{fail: map[string]bool{store.records[1].DedupeKey: true}}
	p := outbox.NewPublisher(store, broker, observability.NopLogger(), 10)

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"reservation.created", "booking.cancelled"}, broker.keys)
	assert.Equal(t, store.records[0].DedupeKey, broker.sent[0].MessageId)
	assert.False(t, store.published[store.records[1].ID])

	broker.fail = nil
	n, err = p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublishBatch_RespectsLimit(t *testing.T) {
	store := &fakeStore{published: map[uuid.UUID]bool{}}
	for i := 0; i < 5; i++ {
		store.records = append(store.records, record("booking.created"))
	}
	p := outbox.NewPublisher(store, &fakeBroker{}, observability.NopLogger(), 2)

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
