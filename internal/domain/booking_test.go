package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newEvent(t *testing.T, capacity int) domain.Event {
	t.Helper()
	ev, err := domain.NewEvent("Concert", now.Add(72*time.Hour), decimal.RequireFromString("12.50"), capacity, now)
	require.NoError(t, err)
	return ev
}

func TestNewReservation(t *testing.T) {
	ev := newEvent(t, 10)
	userID := uuid.New()

	hold, err := domain.NewReservation(&ev, userID, 3, now, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, hold.Status)
	assert.True(t, hold.IsReserved)
	require.NotNil(t, hold.ExpiresAt)
	assert.Equal(t, now.Add(5*time.Minute), *hold.ExpiresAt)
	assert.True(t, hold.TotalAmount.Equal(decimal.RequireFromString("37.50")))
	assert.Regexp(t, `^BK\d+[0-9A-F]{8}$`, hold.Reference)
	assert.Equal(t, 10, ev.AvailableTickets, "a hold must not touch capacity")
}

func TestNewReservation_InvalidQuantity(t *testing.T) {
	ev := newEvent(t, 10)
	for _, qty := range []int{0, -1} {
		_, err := domain.NewReservation(&ev, uuid.New(), qty, now, time.Minute)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	}
}

func TestReferencesAreUnique(t *testing.T) {
	ev := newEvent(t, 1000)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		b, err := domain.NewConfirmedBooking(&ev, uuid.New(), 1, now)
		require.NoError(t, err)
		require.False(t, seen[b.Reference], "duplicate reference %s", b.Reference)
		seen[b.Reference] = true
	}
}

func TestSecondsRemaining(t *testing.T) {
	ev := newEvent(t, 10)
	hold, err := domain.NewReservation(&ev, uuid.New(), 1, now, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 300, hold.SecondsRemaining(now))
	assert.Equal(t, 60, hold.SecondsRemaining(now.Add(4*time.Minute)))
	assert.Equal(t, 0, hold.SecondsRemaining(now.Add(6*time.Minute)))

	require.NoError(t, hold.Confirm())
	assert.Equal(t, 0, hold.SecondsRemaining(now))
}

func TestHoldActivity(t *testing.T) {
	ev := newEvent(t, 10)
	hold, err := domain.NewReservation(&ev, uuid.New(), 1, now, 5*time.Minute)
	require.NoError(t, err)
	expiry := *hold.ExpiresAt

	assert.True(t, hold.IsActiveHold(expiry.Add(-time.Nanosecond)))
	assert.False(t, hold.IsActiveHold(expiry), "expiry must be strictly in the future")
	assert.False(t, hold.IsExpired(expiry))
	assert.True(t, hold.IsExpired(expiry.Add(time.Nanosecond)))
}

// Every operation is attempted from every state; only the legal ones may
// succeed.
func TestStateMachineClosure(t *testing.T) {
	type op struct {
		name string
		run  func(b *domain.Booking, ev *domain.Event) error
	}
	ops := []op{
		{"confirm", func(b *domain.Booking, _ *domain.Event) error { return b.Confirm() }},
		{"cancel", func(b *domain.Booking, ev *domain.Event) error { return b.Cancel(ev, now) }},
		{"release", func(b *domain.Booking, _ *domain.Event) error { return b.Release() }},
	}
	legal := map[domain.Status]map[string]bool{
		domain.StatusPending:   {"confirm": true, "release": true},
		domain.StatusConfirmed: {"cancel": true},
		domain.StatusCancelled: {},
	}

	build := func(t *testing.T, status domain.Status) (domain.Booking, domain.Event) {
		ev := newEvent(t, 10)
		b, err := domain.NewReservation(&ev, uuid.New(), 2, now, 5*time.Minute)
		require.NoError(t, err)
		switch status {
		case domain.StatusConfirmed:
			require.NoError(t, b.Confirm())
		case domain.StatusCancelled:
			require.NoError(t, b.Confirm())
			require.NoError(t, b.Cancel(&ev, now))
		}
		return b, ev
	}

	for _, from := range domain.Statuses {
		for _, o := range ops {
			t.Run(string(from)+"/"+o.name, func(t *testing.T) {
				b, ev := build(t, from)
				before := b
				err := o.run(&b, &ev)
				if legal[from][o.name] {
					require.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
				assert.ErrorIs(t, err, domain.ErrInvalidState)
				assert.Equal(t, before, b, "a rejected transition must not mutate the record")
			})
		}
	}
}

func TestConfirmClearsHoldFields(t *testing.T) {
	ev := newEvent(t, 10)
	b, err := domain.NewReservation(&ev, uuid.New(), 2, now, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, b.Confirm())
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.False(t, b.IsReserved)
	assert.Nil(t, b.ExpiresAt)
}

func TestCancelAfterEventStarted(t *testing.T) {
	ev := newEvent(t, 10)
	b, err := domain.NewConfirmedBooking(&ev, uuid.New(), 2, now)
	require.NoError(t, err)

	err = b.Cancel(&ev, ev.StartsAt)
	assert.ErrorIs(t, err, domain.ErrEventAlreadyOccurred)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
}

func TestEventAllocate(t *testing.T) {
	ev := newEvent(t, 5)
	require.NoError(t, ev.Allocate(3))
	assert.Equal(t, 2, ev.AvailableTickets)

	err := ev.Allocate(3)
	var insufficient *domain.InsufficientInventoryError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, "not enough tickets available. Available: 2, Requested: 3", err.Error())

	ev.Restock(3)
	assert.Equal(t, 5, ev.AvailableTickets)
}

func TestNewEventValidation(t *testing.T) {
	price := decimal.NewFromInt(10)
	_, err := domain.NewEvent(" ", now.Add(time.Hour), price, 1, now)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = domain.NewEvent("x", now.Add(time.Hour), price, -1, now)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = domain.NewEvent("x", now, price, 1, now)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = domain.NewEvent("x", now.Add(time.Hour), decimal.NewFromInt(-1), 1, now)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseStatus(t *testing.T) {
	s, err := domain.ParseStatus("CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, s)

	_, err = domain.ParseStatus("EXPIRED")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
