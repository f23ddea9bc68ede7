package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReservationCreated   = "reservation.created"
	ReservationConfirmed = "reservation.confirmed"
	ReservationCancelled = "reservation.cancelled"
	ReservationExpired   = "reservation.expired"
	BookingCreated       = "booking.created"
	BookingCancelled     = "booking.cancelled"
)

// Notification is a lifecycle change of a booking, written to the outbox in
// the same transaction as the change itself.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	BookingID   uuid.UUID `json:"booking_id"`
	EventID     uuid.UUID `json:"event_id"`
	UserID      uuid.UUID `json:"user_id"`
	TicketCount int       `json:"ticket_count"`
	Reference   string    `json:"reference"`
	Status      Status    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewNotification(kind string, b Booking, now time.Time) Notification {
	return Notification{
		ID:          uuid.New(),
		Type:        kind,
		BookingID:   b.ID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		TicketCount: b.TicketCount,
		Reference:   b.Reference,
		Status:      b.Status,
		OccurredAt:  now.UTC(),
	}
}
