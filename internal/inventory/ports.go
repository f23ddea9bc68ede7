package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
)

// EventStore holds each event's confirmed capacity.
type EventStore interface {
	FindEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	CreateEvent(ctx context.Context, event *domain.Event) error
	// SaveEvent persists event if its Version still matches the stored one
	// and increments Version. A stale version yields domain.ErrConflict.
	SaveEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// Ledger holds reservation holds and bookings.
type Ledger interface {
	// FindActiveHolds returns the PENDING holds of an event whose expiry is
	// strictly after asOf.
	FindActiveHolds(ctx context.Context, eventID uuid.UUID, asOf time.Time) ([]domain.Booking, error)
	// FindExpiredHolds returns every PENDING hold whose expiry is at or
	// before asOf.
	FindExpiredHolds(ctx context.Context, asOf time.Time) ([]domain.Booking, error)
	FindBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	SaveBooking(ctx context.Context, booking *domain.Booking) error
	// DeleteBooking is a no-op for a missing id.
	DeleteBooking(ctx context.Context, id uuid.UUID) error
}

type Outbox interface {
	Enqueue(ctx context.Context, n domain.Notification) error
}

// TxRunner runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Store interface {
	EventStore
	Ledger
	Outbox
	TxRunner
}
