package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// NewReservation creates a PENDING hold on ticketCount tickets of event that
// expires ttl after now.
func NewReservation(event *Event, userID uuid.UUID, ticketCount int, now time.Time, ttl time.Duration) (Booking, error) {
	b, err := newBooking(event, userID, ticketCount, now)
	if err != nil {
		return Booking{}, err
	}
	expiresAt := now.Add(ttl).UTC()
	b.Status = StatusPending
	b.IsReserved = true
	b.ExpiresAt = &expiresAt
	return b, nil
}

// NewConfirmedBooking creates a booking that skips the hold phase.
func NewConfirmedBooking(event *Event, userID uuid.UUID, ticketCount int, now time.Time) (Booking, error) {
	b, err := newBooking(event, userID, ticketCount, now)
	if err != nil {
		return Booking{}, err
	}
	b.Status = StatusConfirmed
	return b, nil
}

func newBooking(event *Event, userID uuid.UUID, ticketCount int, now time.Time) (Booking, error) {
	if ticketCount <= 0 {
		return Booking{}, errors.Wrapf(ErrInvalidQuantity, "requested %d", ticketCount)
	}
	if userID == uuid.Nil {
		return Booking{}, errors.Wrap(ErrInvalidInput, "user is required")
	}
	return Booking{
		ID:          uuid.New(),
		UserID:      userID,
		EventID:     event.ID,
		TicketCount: ticketCount,
		TotalAmount: event.PriceFor(ticketCount),
		CreatedAt:   now.UTC(),
		Reference:   newReference(now),
	}, nil
}

// newReference yields "BK" + creation millis + eight random hex digits.
func newReference(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("BK%d%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(id[:4])))
}

// IsHold reports whether b is an unconfirmed hold, expired or not.
func (b *Booking) IsHold() bool {
	return b.IsReserved && b.Status == StatusPending
}

// IsActiveHold reports whether b still holds capacity at asOf.
func (b *Booking) IsActiveHold(asOf time.Time) bool {
	return b.IsHold() && b.ExpiresAt != nil && b.ExpiresAt.After(asOf)
}

// IsExpired reports whether the hold's expiry is strictly before now.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// SecondsRemaining is max(0, expiry - now) in whole seconds.
func (b *Booking) SecondsRemaining(now time.Time) int {
	if b.ExpiresAt == nil {
		return 0
	}
	left := int(b.ExpiresAt.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Confirm turns a hold into a booking.
func (b *Booking) Confirm() error {
	if !b.IsHold() {
		return transitionError(b.Status, StatusConfirmed)
	}
	b.Status = StatusConfirmed
	b.IsReserved = false
	b.ExpiresAt = nil
	return nil
}

// Cancel cancels a confirmed booking. The event must not have started.
func (b *Booking) Cancel(event *Event, now time.Time) error {
	if !CanTransition(b.Status, StatusCancelled) || b.IsReserved {
		return transitionError(b.Status, StatusCancelled)
	}
	if event.HasStarted(now) {
		return errors.Wrapf(ErrEventAlreadyOccurred, "event %s started at %s", event.ID, event.StartsAt.Format(time.RFC3339))
	}
	b.Status = StatusCancelled
	return nil
}

// Release validates that b may be deleted, which is how a hold ends when it
// is cancelled or expires.
func (b *Booking) Release() error {
	if !b.IsHold() {
		return errors.Wrapf(ErrInvalidStateTransition, "%s booking cannot be released", b.Status)
	}
	return nil
}

func transitionError(from, to Status) error {
	return errors.Wrapf(ErrInvalidStateTransition, "%s -> %s", from, to)
}
