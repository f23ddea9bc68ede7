package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/ticket-inventory/internal/idempotency"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/robertarktes/ticket-inventory/internal/rateLimit"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	RateLimiter    *rateLimit.RateLimiter
	RateLimitUser  int
	RateLimitIP    int
	Idempotency    *idempotency.Idempotency
}

func SetupRouter(h *Handlers, logger observability.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)
	r.Use(PrincipalMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.RateLimitUser, cfg.RateLimitIP))
		}
		r.Get("/v1/events", h.ListEvents)
		r.Get("/v1/events/{id}/availability", h.Availability)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			if cfg.Idempotency != nil {
				r.Use(IdempotencyMiddleware(cfg.Idempotency))
			}

			r.Post("/v1/reservations", h.Reserve)
			r.Post("/v1/reservations/bulk", h.BulkReserve)
			r.Get("/v1/reservations/active", h.ActiveReservations)
			r.Get("/v1/reservations/{id}", h.GetReservation)
			r.Post("/v1/reservations/{id}/confirm", h.ConfirmReservation)
			r.Delete("/v1/reservations/{id}", h.CancelReservation)

			r.Get("/v1/bookings", h.UserBookings)
			r.Get("/v1/bookings/{id}", h.GetBooking)
			r.Delete("/v1/bookings/{id}", h.CancelBooking)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/v1/events", h.CreateEvent)
				r.Post("/v1/admin/bookings", h.CreateBooking)
			})
		})
	})

	return r
}
