package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/inventory"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeper(f *fixture) *inventory.Sweeper {
	return inventory.NewSweeper(f.svc, observability.NopLogger(), inventory.WithRetries(3, time.Millisecond))
}

func TestSweepOnce_ReclaimsOnlyExpired(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	old, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 3)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)
	fresh, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 2)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	res, err := newSweeper(f).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, inventory.SweepResult{Found: 1, Reclaimed: 1}, res)

	_, err = f.store.FindBooking(ctx, old.ReservationID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.FindBooking(ctx, fresh.ReservationID)
	assert.NoError(t, err)
	assert.Equal(t, 10, f.available(t))

	notes := f.store.Notifications()
	assert.Equal(t, domain.ReservationExpired, notes[len(notes)-1].Type)

	res, err = newSweeper(f).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, inventory.SweepResult{}, res)
}

func TestSweepOnce_PartialFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		h, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 1)
		require.NoError(t, err)
		ids = append(ids, h.ReservationID)
	}
	f.clock.Advance(10 * time.Minute)

	broken := ids[1]
	f.store.SetFault(func(op string, id uuid.UUID) error {
		if op == "DeleteBooking" && id == broken {
			return errors.New("replica unavailable")
		}
		return nil
	})

	res, err := newSweeper(f).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 2, res.Reclaimed)
	assert.Equal(t, 1, res.Failed)

	_, err = f.store.FindBooking(ctx, broken)
	assert.NoError(t, err, "the failed hold stays for the next sweep")

	f.store.SetFault(nil)
	res, err = newSweeper(f).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reclaimed)
}

func TestSweepOnce_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 1)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	var mu sync.Mutex
	attempts := 0
	f.store.SetFault(func(op string, _ uuid.UUID) error {
		if op != "DeleteBooking" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	res, err := newSweeper(f).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reclaimed)
	assert.Equal(t, 3, attempts)
}

func TestReclaimExpired_SkipsConfirmedHold(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	hold, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 2)
	require.NoError(t, err)
	stale, err := f.store.FindBooking(ctx, hold.ReservationID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, hold.ReservationID)
	require.NoError(t, err)

	reclaimed, err := f.svc.ReclaimExpired(ctx, *stale, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, reclaimed)

	b, err := f.store.FindBooking(ctx, hold.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.Equal(t, 8, f.available(t))

	gone := mustReserve(t, f, 1)
	stale, err = f.store.FindBooking(ctx, gone)
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelReservation(ctx, gone))
	reclaimed, err = f.svc.ReclaimExpired(ctx, *stale, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, reclaimed, "an already deleted hold is skipped")
}

func mustReserve(t *testing.T, f *fixture, qty int) uuid.UUID {
	t.Helper()
	h, err := f.svc.Reserve(context.Background(), uuid.New(), f.event.ID, qty)
	require.NoError(t, err)
	return h.ReservationID
}

func TestSweepOnce_RefusesOverlap(t *testing.T) {
	f := newFixture(t, 10, inventory.WithLockTimeout(100*time.Millisecond))
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 1)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	guard, err := f.locks.Acquire(ctx, f.event.ID, time.Second)
	require.NoError(t, err)

	sw := newSweeper(f)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := sw.SweepOnce(ctx)
			errs <- err
		}()
	}
	first := <-errs
	assert.ErrorIs(t, first, inventory.ErrSweepInProgress)
	guard.Release()
	assert.NoError(t, <-errs)
}

func TestSweeperRun(t *testing.T) {
	f := newFixture(t, 10)
	ctx, cancel := context.WithCancel(context.Background())

	hold, err := f.svc.Reserve(ctx, uuid.New(), f.event.ID, 1)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	done := make(chan struct{})
	go func() {
		newSweeper(f).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := f.store.FindBooking(context.Background(), hold.ReservationID)
		return errors.Is(err, domain.ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
