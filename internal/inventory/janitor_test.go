package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/inventory"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_RetiresPastAndUnknownEvents(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	soon, err := f.svc.CreateEvent(ctx, inventory.NewEventInput{
		Title: "Sunrise run", StartsAt: t0.Add(time.Hour), TicketPrice: decimal.Zero, Capacity: 5,
	})
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, uuid.New(), f.event.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, uuid.New(), soon.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, uuid.New(), uuid.New(), 1)
	require.Error(t, err)
	require.Equal(t, 3, f.locks.Len())

	f.clock.Advance(2 * time.Hour)
	j := inventory.NewJanitor(f.svc, observability.NopLogger())
	assert.Equal(t, 2, j.PruneOnce(ctx))
	assert.Equal(t, []uuid.UUID{f.event.ID}, f.locks.Keys())

	assert.Equal(t, 0, j.PruneOnce(ctx))
}

func TestJanitor_SkipsHeldLocks(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	guard, err := f.locks.Acquire(ctx, uuid.New(), time.Second)
	require.NoError(t, err)

	j := inventory.NewJanitor(f.svc, observability.NopLogger())
	assert.Equal(t, 0, j.PruneOnce(ctx))
	assert.Equal(t, 1, f.locks.Len())

	guard.Release()
	assert.Equal(t, 1, j.PruneOnce(ctx))
	assert.Equal(t, 0, f.locks.Len())
}
