package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/shopspring/decimal"
)

type ReservationView struct {
	ReservationID    uuid.UUID       `json:"reservation_id"`
	UserID           uuid.UUID       `json:"user_id"`
	EventID          uuid.UUID       `json:"event_id"`
	Reference        string          `json:"booking_reference"`
	TicketCount      int             `json:"ticket_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ExpiresAt        time.Time       `json:"reservation_expiry"`
	SecondsRemaining int             `json:"expires_in_seconds"`
}

// NewReservationView projects a hold; SecondsRemaining is computed against
// now, at response time.
func NewReservationView(b domain.Booking, now time.Time) ReservationView {
	v := ReservationView{
		ReservationID:    b.ID,
		UserID:           b.UserID,
		EventID:          b.EventID,
		Reference:        b.Reference,
		TicketCount:      b.TicketCount,
		TotalAmount:      b.TotalAmount,
		SecondsRemaining: b.SecondsRemaining(now),
	}
	if b.ExpiresAt != nil {
		v.ExpiresAt = *b.ExpiresAt
	}
	return v
}

type BookingView struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	EventID     uuid.UUID       `json:"event_id"`
	Reference   string          `json:"booking_reference"`
	TicketCount int             `json:"ticket_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      domain.Status   `json:"status"`
	BookedAt    time.Time       `json:"booking_date"`
}

func NewBookingView(b domain.Booking) BookingView {
	return BookingView{
		ID:          b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		Reference:   b.Reference,
		TicketCount: b.TicketCount,
		TotalAmount: b.TotalAmount,
		Status:      b.Status,
		BookedAt:    b.CreatedAt,
	}
}

type EventView struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	StartsAt         time.Time       `json:"starts_at"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	AvailableTickets int             `json:"available_tickets"`
}

func NewEventView(e domain.Event) EventView {
	return EventView{
		ID:               e.ID,
		Title:            e.Title,
		StartsAt:         e.StartsAt,
		TicketPrice:      e.TicketPrice,
		AvailableTickets: e.AvailableTickets,
	}
}

// AvailabilityView is a point-in-time snapshot; it is not a guarantee that a
// subsequent hold will succeed.
type AvailabilityView struct {
	EventID          uuid.UUID `json:"event_id"`
	AvailableTickets int       `json:"available_tickets"`
	HeldTickets      int       `json:"held_tickets"`
	BookableTickets  int       `json:"bookable_tickets"`
	OnSale           bool      `json:"on_sale"`
	AsOf             time.Time `json:"as_of"`
}
