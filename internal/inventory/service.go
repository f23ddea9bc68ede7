package inventory

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/clock"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/lockregistry"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHoldTTL     = 5 * time.Minute
	DefaultLockTimeout = 5 * time.Second
)

// Service serializes every capacity-affecting operation per event through
// the lock registry. Operations on different events proceed in parallel.
type Service struct {
	store       Store
	locks       *lockregistry.Registry[uuid.UUID]
	clock       clock.Clock
	logger      observability.Logger
	tracer      trace.Tracer
	holdTTL     time.Duration
	lockTimeout time.Duration
}

type Option func(*Service)

func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(store Store, locks *lockregistry.Registry[uuid.UUID], logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		locks:       locks,
		clock:       clock.Real(),
		logger:      logger,
		tracer:      otel.Tracer("inventory"),
		holdTTL:     DefaultHoldTTL,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withEventLock runs fn inside a store transaction while holding the lock of
// eventID. Once the lock is held fn runs to completion even if ctx is
// cancelled.
func (s *Service) withEventLock(ctx context.Context, eventID uuid.UUID, fn func(ctx context.Context) error) error {
	waitStart := time.Now()
	guard, err := s.locks.Acquire(ctx, eventID, s.lockTimeout)
	observability.LockWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		if errors.Is(err, lockregistry.ErrTimeout) {
			return errors.Wrapf(domain.ErrSystemBusy, "event %s", eventID)
		}
		return errors.WithSecondaryError(errors.Wrapf(domain.ErrInterrupted, "event %s", eventID), err)
	}
	defer guard.Release()

	txStart := time.Now()
	err = s.store.WithTx(context.WithoutCancel(ctx), fn)
	observability.DBTxDuration.Observe(time.Since(txStart).Seconds())
	return err
}

// heldTickets sums the active holds of eventID at now, leaving out exclude.
func (s *Service) heldTickets(ctx context.Context, eventID uuid.UUID, now time.Time, exclude uuid.UUID) (int, error) {
	holds, err := s.store.FindActiveHolds(ctx, eventID, now)
	if err != nil {
		return 0, errors.Wrap(err, "find active holds")
	}
	held := 0
	for _, h := range holds {
		if h.ID != exclude {
			held += h.TicketCount
		}
	}
	return held, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "inventory."+name, trace.WithAttributes(attrs...))
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	observability.AllocationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	observability.EndSpan(span, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, domain.ErrSystemBusy):
		return "busy"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	default:
		return "rejected"
	}
}

// Reserve places a time-limited hold on qty tickets. The event's confirmed
// capacity is left untouched.
func (s *Service) Reserve(ctx context.Context, userID, eventID uuid.UUID, qty int) (view ReservationView, err error) {
	ctx, span := s.startSpan(ctx, "Reserve", attribute.String("event.id", eventID.String()), attribute.Int("tickets", qty))
	defer func() { s.finish(span, "reserve", err) }()

	if qty <= 0 {
		return ReservationView{}, errors.Wrapf(domain.ErrInvalidQuantity, "requested %d", qty)
	}

	var hold domain.Booking
	err = s.withEventLock(ctx, eventID, func(ctx context.Context) error {
		now := s.clock.Now()
		event, err := s.store.FindEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.HasStarted(now) {
			return errors.Wrapf(domain.ErrEventAlreadyOccurred, "event %s", eventID)
		}
		held, err := s.heldTickets(ctx, eventID, now, uuid.Nil)
		if err != nil {
			return err
		}
		if available := event.AvailableTickets - held; available < qty {
			return domain.NewInsufficientInventory(qty, available)
		}
		hold, err = domain.NewReservation(event, userID, qty, now, s.holdTTL)
		if err != nil {
			return err
		}
		if err := s.store.SaveBooking(ctx, &hold); err != nil {
			return errors.Wrap(err, "save hold")
		}
		return s.store.Enqueue(ctx, domain.NewNotification(domain.ReservationCreated, hold, now))
	})
	if err != nil {
		return ReservationView{}, err
	}

	s.logger.WithField("reservation_id", hold.ID).WithField("event_id", eventID).Info("tickets reserved")
	return NewReservationView(hold, s.clock.Now()), nil
}

func checkConfirmable(b *domain.Booking, now time.Time) error {
	if b.IsExpired(now) {
		return errors.Wrapf(domain.ErrExpired, "reservation %s expired at %s", b.ID, b.ExpiresAt.Format(time.RFC3339))
	}
	if !b.IsHold() {
		return errors.Wrapf(domain.ErrInvalidState, "reservation %s is %s", b.ID, b.Status)
	}
	return nil
}

// ConfirmReservation turns a live hold into a booking. Availability is
// recomputed under the lock without the hold being confirmed, so holds that
// outlived their sweep cannot push the event past capacity.
func (s *Service) ConfirmReservation(ctx context.Context, reservationID uuid.UUID) (view BookingView, err error) {
	ctx, span := s.startSpan(ctx, "ConfirmReservation", attribute.String("reservation.id", reservationID.String()))
	defer func() { s.finish(span, "confirm", err) }()

	hold, err := s.store.FindBooking(ctx, reservationID)
	if err != nil {
		return BookingView{}, err
	}
	if err := checkConfirmable(hold, s.clock.Now()); err != nil {
		return BookingView{}, err
	}

	var booking domain.Booking
	err = s.withEventLock(ctx, hold.EventID, func(ctx context.Context) error {
		now := s.clock.Now()
		current, err := s.store.FindBooking(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := checkConfirmable(current, now); err != nil {
			return err
		}
		event, err := s.store.FindEvent(ctx, current.EventID)
		if err != nil {
			return err
		}
		held, err := s.heldTickets(ctx, event.ID, now, current.ID)
		if err != nil {
			return err
		}
		if available := event.AvailableTickets - held; available < current.TicketCount {
			return domain.NewInsufficientInventory(current.TicketCount, available)
		}
		if err := event.Allocate(current.TicketCount); err != nil {
			return err
		}
		if err := s.store.SaveEvent(ctx, event); err != nil {
			return errors.Wrap(err, "save event")
		}
		if err := current.Confirm(); err != nil {
			return err
		}
		if err := s.store.SaveBooking(ctx, current); err != nil {
			return errors.Wrap(err, "save booking")
		}
		booking = *current
		return s.store.Enqueue(ctx, domain.NewNotification(domain.ReservationConfirmed, booking, now))
	})
	if err != nil {
		return BookingView{}, err
	}

	s.logger.WithField("booking_id", booking.ID).WithField("event_id", booking.EventID).Info("reservation confirmed")
	return NewBookingView(booking), nil
}

// CancelReservation deletes a hold. Confirmed capacity is unchanged since
// the hold never consumed any.
func (s *Service) CancelReservation(ctx context.Context, reservationID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "CancelReservation", attribute.String("reservation.id", reservationID.String()))
	defer func() { s.finish(span, "cancel_reservation", err) }()

	hold, err := s.store.FindBooking(ctx, reservationID)
	if err != nil {
		return err
	}
	if err := hold.Release(); err != nil {
		return err
	}

	return s.withEventLock(ctx, hold.EventID, func(ctx context.Context) error {
		current, err := s.store.FindBooking(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := current.Release(); err != nil {
			return err
		}
		if err := s.store.DeleteBooking(ctx, current.ID); err != nil {
			return errors.Wrap(err, "delete hold")
		}
		return s.store.Enqueue(ctx, domain.NewNotification(domain.ReservationCancelled, *current, s.clock.Now()))
	})
}

// CancelBooking cancels a confirmed booking owned by userID and returns its
// tickets to the event.
func (s *Service) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (view BookingView, err error) {
	ctx, span := s.startSpan(ctx, "CancelBooking", attribute.String("booking.id", bookingID.String()))
	defer func() { s.finish(span, "cancel_booking", err) }()

	booking, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return BookingView{}, err
	}
	if booking.UserID != userID {
		return BookingView{}, errors.Wrapf(domain.ErrForbidden, "booking %s", bookingID)
	}
	if booking.Status != domain.StatusConfirmed {
		return BookingView{}, errors.Wrapf(domain.ErrInvalidState, "only confirmed bookings can be cancelled, booking %s is %s", bookingID, booking.Status)
	}

	var cancelled domain.Booking
	err = s.withEventLock(ctx, booking.EventID, func(ctx context.Context) error {
		now := s.clock.Now()
		current, err := s.store.FindBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		event, err := s.store.FindEvent(ctx, current.EventID)
		if err != nil {
			return err
		}
		if err := current.Cancel(event, now); err != nil {
			return err
		}
		event.Restock(current.TicketCount)
		if err := s.store.SaveEvent(ctx, event); err != nil {
			return errors.Wrap(err, "save event")
		}
		if err := s.store.SaveBooking(ctx, current); err != nil {
			return errors.Wrap(err, "save booking")
		}
		cancelled = *current
		return s.store.Enqueue(ctx, domain.NewNotification(domain.BookingCancelled, cancelled, now))
	})
	if err != nil {
		return BookingView{}, err
	}

	s.logger.WithField("booking_id", bookingID).Info("booking cancelled")
	return NewBookingView(cancelled), nil
}

// CreateBooking books qty tickets directly, without a hold. Only confirmed
// capacity is checked.
func (s *Service) CreateBooking(ctx context.Context, userID, eventID uuid.UUID, qty int) (view BookingView, err error) {
	ctx, span := s.startSpan(ctx, "CreateBooking", attribute.String("event.id", eventID.String()), attribute.Int("tickets", qty))
	defer func() { s.finish(span, "create_booking", err) }()

	if qty <= 0 {
		return BookingView{}, errors.Wrapf(domain.ErrInvalidQuantity, "requested %d", qty)
	}

	var booking domain.Booking
	err = s.withEventLock(ctx, eventID, func(ctx context.Context) error {
		now := s.clock.Now()
		event, err := s.store.FindEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.HasStarted(now) {
			return errors.Wrapf(domain.ErrEventAlreadyOccurred, "event %s", eventID)
		}
		booking, err = domain.NewConfirmedBooking(event, userID, qty, now)
		if err != nil {
			return err
		}
		if err := event.Allocate(qty); err != nil {
			return err
		}
		if err := s.store.SaveEvent(ctx, event); err != nil {
			return errors.Wrap(err, "save event")
		}
		if err := s.store.SaveBooking(ctx, &booking); err != nil {
			return errors.Wrap(err, "save booking")
		}
		return s.store.Enqueue(ctx, domain.NewNotification(domain.BookingCreated, booking, now))
	})
	if err != nil {
		return BookingView{}, err
	}

	s.logger.WithField("booking_id", booking.ID).WithField("event_id", eventID).Info("booking created")
	return NewBookingView(booking), nil
}

type NewEventInput struct {
	Title       string          `json:"title"`
	StartsAt    time.Time       `json:"starts_at"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	Capacity    int             `json:"capacity"`
}

func (s *Service) CreateEvent(ctx context.Context, in NewEventInput) (EventView, error) {
	event, err := domain.NewEvent(in.Title, in.StartsAt, in.TicketPrice, in.Capacity, s.clock.Now())
	if err != nil {
		return EventView{}, err
	}
	if err := s.store.CreateEvent(ctx, &event); err != nil {
		return EventView{}, errors.Wrap(err, "create event")
	}
	s.logger.WithField("event_id", event.ID).Info("event created")
	return NewEventView(event), nil
}

func (s *Service) ListEvents(ctx context.Context) ([]EventView, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, NewEventView(e))
	}
	return views, nil
}

// Availability reports confirmed capacity and what active holds leave of it.
// It takes no lock.
func (s *Service) Availability(ctx context.Context, eventID uuid.UUID) (AvailabilityView, error) {
	now := s.clock.Now()
	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return AvailabilityView{}, err
	}
	held, err := s.heldTickets(ctx, eventID, now, uuid.Nil)
	if err != nil {
		return AvailabilityView{}, err
	}
	return AvailabilityView{
		EventID:          eventID,
		AvailableTickets: event.AvailableTickets,
		HeldTickets:      held,
		BookableTickets:  max(0, event.AvailableTickets-held),
		OnSale:           !event.HasStarted(now),
		AsOf:             now,
	}, nil
}

// GetReservation returns a hold. Confirmed or cancelled bookings are not
// reservations.
func (s *Service) GetReservation(ctx context.Context, reservationID uuid.UUID) (ReservationView, error) {
	b, err := s.store.FindBooking(ctx, reservationID)
	if err != nil {
		return ReservationView{}, err
	}
	if !b.IsHold() {
		return ReservationView{}, errors.Wrapf(domain.ErrInvalidState, "%s is not a reservation", reservationID)
	}
	return NewReservationView(*b, s.clock.Now()), nil
}

func (s *Service) ActiveReservations(ctx context.Context, userID uuid.UUID) ([]ReservationView, error) {
	bookings, err := s.store.FindBookingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]ReservationView, 0)
	for _, b := range bookings {
		if b.IsActiveHold(now) {
			views = append(views, NewReservationView(b, now))
		}
	}
	return views, nil
}

// UserBookings lists every booking of userID, holds included, newest first.
func (s *Service) UserBookings(ctx context.Context, userID uuid.UUID) ([]BookingView, error) {
	bookings, err := s.store.FindBookingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, NewBookingView(b))
	}
	return views, nil
}

func (s *Service) GetBooking(ctx context.Context, bookingID uuid.UUID) (BookingView, error) {
	b, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return BookingView{}, err
	}
	return NewBookingView(*b), nil
}

// Owner returns the user a booking or hold belongs to.
func (s *Service) Owner(ctx context.Context, bookingID uuid.UUID) (uuid.UUID, error) {
	b, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return uuid.Nil, err
	}
	return b.UserID, nil
}
