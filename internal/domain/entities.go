package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the inventory record for a ticketed event. AvailableTickets is net
// of confirmed bookings only; active holds are never subtracted from it.
type Event struct {
	ID               uuid.UUID
	Title            string
	StartsAt         time.Time
	TicketPrice      decimal.Decimal
	AvailableTickets int
	Version          int64
	CreatedAt        time.Time
}

// Booking is both a hold (PENDING, reserved, with an expiry) and a booking
// (CONFIRMED or CANCELLED, no expiry).
type Booking struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	EventID     uuid.UUID
	TicketCount int
	TotalAmount decimal.Decimal
	Status      Status
	IsReserved  bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	Reference   string
}

func NewEvent(title string, startsAt time.Time, price decimal.Decimal, capacity int, now time.Time) (Event, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return Event{}, errors.Wrap(ErrInvalidInput, "title is required")
	case capacity < 0:
		return Event{}, errors.Wrapf(ErrInvalidInput, "capacity %d is negative", capacity)
	case price.IsNegative():
		return Event{}, errors.Wrapf(ErrInvalidInput, "ticket price %s is negative", price)
	case !startsAt.After(now):
		return Event{}, errors.Wrap(ErrInvalidInput, "event must start in the future")
	}
	return Event{
		ID:               uuid.New(),
		Title:            title,
		StartsAt:         startsAt.UTC(),
		TicketPrice:      price,
		AvailableTickets: capacity,
		CreatedAt:        now.UTC(),
	}, nil
}

// HasStarted reports whether the event date is no longer strictly in the
// future.
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}

// Allocate consumes n tickets of confirmed capacity.
func (e *Event) Allocate(n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if e.AvailableTickets < n {
		return NewInsufficientInventory(n, e.AvailableTickets)
	}
	e.AvailableTickets -= n
	return nil
}

// Restock returns n previously confirmed tickets.
func (e *Event) Restock(n int) {
	e.AvailableTickets += n
}

func (e *Event) PriceFor(ticketCount int) decimal.Decimal {
	return e.TicketPrice.Mul(decimal.NewFromInt(int64(ticketCount)))
}
