package audit_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/ticket-inventory/internal/audit"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked    int
	nacked   int
	requeued int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { a.nacked++; return nil }

type sink struct {
	err  error
	seen []domain.Notification
}

func (s *sink) LogNotification(_ context.Context, n domain.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.seen = append(s.seen, n)
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: data, Redelivered: redelivered}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	n := domain.Notification{ID: uuid.New(), Type: domain.ReservationExpired, BookingID: uuid.New()}

	t.Run("recorded", func(t *testing.T) {
		ack, s := &ackRecorder{}, &sink{}
		audit.NewConsumer(s, observability.NopLogger()).Handle(ctx, delivery(t, ack, n, false))
		assert.Equal(t, 1, ack.acked)
		require.Len(t, s.seen, 1)
		assert.Equal(t, n.ID, s.seen[0].ID)
	})

	t.Run("malformed", func(t *testing.T) {
		ack := &ackRecorder{}
		d := amqp.Delivery{Acknowledger: ack, Body: []byte("{")}
		audit.NewConsumer(&sink{}, observability.NopLogger()).Handle(ctx, d)
		assert.Equal(t, 1, ack.nacked)
		assert.Zero(t, ack.requeued)
	})

	t.Run("sink failure requeues once", func(t *testing.T) {
		ack, s := &ackRecorder{}, &sink{err: errors.New("mongo down")}
		c := audit.NewConsumer(s, observability.NopLogger())
		c.Handle(ctx, delivery(t, ack, n, false))
		c.Handle(ctx, delivery(t, ack, n, true))
		assert.Equal(t, 2, ack.nacked)
		assert.Equal(t, 1, ack.requeued)
	})
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	ch := make(chan amqp.Delivery, 1)
	ack, s := &ackRecorder{}, &sink{}
	ch <- delivery(t, ack, domain.Notification{ID: uuid.New()}, false)
	close(ch)

	err := audit.NewConsumer(s, observability.NopLogger()).Run(context.Background(), ch)
	assert.Error(t, err)
	assert.Equal(t, 1, ack.acked)
}
