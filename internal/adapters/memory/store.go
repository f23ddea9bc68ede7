// Package memory is an in-process Store. Transactions keep an undo log so a
// failed WithTx leaves no partial writes behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
)

// FaultFunc is consulted before every write. A non-nil result fails the
// write with that error.
type FaultFunc func(op string, id uuid.UUID) error

type Store struct {
	mu       sync.RWMutex
	events   map[uuid.UUID]domain.Event
	bookings map[uuid.UUID]domain.Booking
	outbox   []domain.Notification
	fault    FaultFunc
}

func NewStore() *Store {
	return &Store{
		events:   make(map[uuid.UUID]domain.Event),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

// SetFault installs f; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

type txKey struct{}

type tx struct {
	undo []func()
}

// WithTx joins an enclosing transaction if ctx already carries one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}
	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// onRollback must be called with s.mu held.
func onRollback(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

func (s *Store) checkFault(op string, id uuid.UUID) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, id)
}

func cloneBooking(b domain.Booking) domain.Booking {
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		b.ExpiresAt = &t
	}
	return b
}

func (s *Store) CreateEvent(ctx context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("CreateEvent", event.ID); err != nil {
		return err
	}
	if _, ok := s.events[event.ID]; ok {
		return errors.Wrapf(domain.ErrConflict, "event %s already exists", event.ID)
	}
	s.events[event.ID] = *event
	id := event.ID
	onRollback(ctx, func() { delete(s.events, id) })
	return nil
}

func (s *Store) FindEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "event %s", id)
	}
	return &e, nil
}

func (s *Store) SaveEvent(ctx context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("SaveEvent", event.ID); err != nil {
		return err
	}
	prev, ok := s.events[event.ID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "event %s", event.ID)
	}
	if prev.Version != event.Version {
		return errors.Wrapf(domain.ErrConflict, "event %s version %d, have %d", event.ID, prev.Version, event.Version)
	}
	event.Version++
	s.events[event.ID] = *event
	onRollback(ctx, func() { s.events[prev.ID] = prev })
	return nil
}

func (s *Store) ListEvents(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

func (s *Store) FindActiveHolds(_ context.Context, eventID uuid.UUID, asOf time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var holds []domain.Booking
	for _, b := range s.bookings {
		if b.EventID == eventID && b.IsActiveHold(asOf) {
			holds = append(holds, cloneBooking(b))
		}
	}
	return holds, nil
}

func (s *Store) FindExpiredHolds(_ context.Context, asOf time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var holds []domain.Booking
	for _, b := range s.bookings {
		if b.IsHold() && b.ExpiresAt != nil && !b.ExpiresAt.After(asOf) {
			holds = append(holds, cloneBooking(b))
		}
	}
	sort.Slice(holds, func(i, j int) bool { return holds[i].ExpiresAt.Before(*holds[j].ExpiresAt) })
	return holds, nil
}

func (s *Store) FindBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "booking %s", id)
	}
	b = cloneBooking(b)
	return &b, nil
}

func (s *Store) FindBookingsByUser(_ context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bookings []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CreatedAt.After(bookings[j].CreatedAt) })
	return bookings, nil
}

func (s *Store) SaveBooking(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("SaveBooking", booking.ID); err != nil {
		return err
	}
	for id, b := range s.bookings {
		if id != booking.ID && b.Reference == booking.Reference {
			return errors.Wrapf(domain.ErrConflict, "reference %s already used", booking.Reference)
		}
	}
	prev, existed := s.bookings[booking.ID]
	s.bookings[booking.ID] = cloneBooking(*booking)
	id := booking.ID
	onRollback(ctx, func() {
		if existed {
			s.bookings[id] = prev
			return
		}
		delete(s.bookings, id)
	})
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("DeleteBooking", id); err != nil {
		return err
	}
	prev, ok := s.bookings[id]
	if !ok {
		return nil
	}
	delete(s.bookings, id)
	onRollback(ctx, func() { s.bookings[id] = prev })
	return nil
}

func (s *Store) Enqueue(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault("Enqueue", n.BookingID); err != nil {
		return err
	}
	s.outbox = append(s.outbox, n)
	onRollback(ctx, func() {
		for i := range s.outbox {
			if s.outbox[i].ID == n.ID {
				s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
				return
			}
		}
	})
	return nil
}

// Notifications returns everything enqueued so far, in order.
func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.outbox...)
}
