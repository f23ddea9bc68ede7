package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/inventory"
)

// AvailabilityCache holds advisory availability snapshots.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, eventID uuid.UUID) (*inventory.AvailabilityView, error)
	SetAvailability(ctx context.Context, view inventory.AvailabilityView) error
	InvalidateAvailability(ctx context.Context, eventID uuid.UUID) error
}

type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	svc    *inventory.Service
	cache  AvailabilityCache
	checks []ReadinessCheck
}

// NewHandlers wires the HTTP surface to svc. cache may be nil.
func NewHandlers(svc *inventory.Service, cache AvailabilityCache, checks ...ReadinessCheck) *Handlers {
	return &Handlers{svc: svc, cache: cache, checks: checks}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(domain.ErrInvalidInput, "malformed request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(domain.ErrInvalidInput, "invalid id")
	}
	return id, nil
}

func (h *Handlers) invalidate(ctx context.Context, eventID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateAvailability(ctx, eventID); err != nil {
		loggerFrom(ctx).WithError(err).Warn("failed to invalidate availability")
	}
}

// authorize lets the owner of a booking, or an admin, act on it.
func (h *Handlers) authorize(ctx context.Context, bookingID uuid.UUID) error {
	p, _ := principalFrom(ctx)
	if p.Admin {
		return nil
	}
	owner, err := h.svc.Owner(ctx, bookingID)
	if err != nil {
		return err
	}
	if owner != p.UserID {
		return errors.Wrapf(domain.ErrForbidden, "booking %s", bookingID)
	}
	return nil
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewEventInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.cache != nil {
		if view, err := h.cache.GetAvailability(r.Context(), id); err == nil && view != nil {
			writeJSON(w, http.StatusOK, view)
			return
		}
	}
	view, err := h.svc.Availability(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetAvailability(r.Context(), view); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("failed to cache availability")
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type reserveRequest struct {
	EventID     uuid.UUID `json:"event_id"`
	TicketCount int       `json:"ticket_count"`
}

func (h *Handlers) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	view, err := h.svc.Reserve(r.Context(), p.UserID, req.EventID, req.TicketCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), req.EventID)
	writeJSON(w, http.StatusCreated, view)
}

type bulkItem struct {
	EventID     uuid.UUID                  `json:"event_id"`
	TicketCount int                        `json:"ticket_count"`
	Reservation *inventory.ReservationView `json:"reservation,omitempty"`
	Error       *errorBody                 `json:"error,omitempty"`
}

func (h *Handlers) BulkReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []inventory.ReserveRequest `json:"requests"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "at least one request is required"))
		return
	}

	p, _ := principalFrom(r.Context())
	results := h.svc.BulkReserve(r.Context(), p.UserID, req.Requests)

	items := make([]bulkItem, 0, len(results))
	for _, res := range results {
		item := bulkItem{EventID: res.Request.EventID, TicketCount: res.Request.TicketCount, Reservation: res.Reservation}
		if res.Err != nil {
			_, code := classify(res.Err)
			item.Error = &errorBody{Error: true, Code: code, Message: res.Err.Error()}
		} else {
			h.invalidate(r.Context(), res.Request.EventID)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

func (h *Handlers) ActiveReservations(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	views, err := h.svc.ActiveReservations(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.svc.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.svc.ConfirmReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), booking.EventID)
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.svc.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.CancelReservation(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), view.EventID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UserBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	views, err := h.svc.UserBookings(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	view, err := h.svc.CancelBooking(r.Context(), p.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), view.EventID)
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      uuid.UUID `json:"user_id"`
		EventID     uuid.UUID `json:"event_id"`
		TicketCount int       `json:"ticket_count"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.svc.CreateBooking(r.Context(), req.UserID, req.EventID, req.TicketCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), req.EventID)
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if err := check(r.Context()); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
