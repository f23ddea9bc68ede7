package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/idempotency"
)

type errorBody struct {
	Error     bool      `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Requested *int      `json:"requested,omitempty"`
	Available *int      `json:"available,omitempty"`
}

// classify maps an error to its HTTP status and stable code. Order matters:
// the more specific sentinels come first.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, "reservation_expired"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrEventAlreadyOccurred):
		return http.StatusConflict, "event_already_occurred"
	case errors.Is(err, domain.ErrSystemBusy):
		return http.StatusServiceUnavailable, "system_busy"
	case errors.Is(err, domain.ErrInterrupted):
		return http.StatusServiceUnavailable, "interrupted"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, "conflict"
	case errors.Is(err, idempotency.ErrInFlight):
		return http.StatusConflict, "request_in_progress"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{
		Error:     true,
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	var insufficient *domain.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		body.Message = insufficient.Error()
		body.Requested = &insufficient.Requested
		body.Available = &insufficient.Available
	}

	logger := loggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("code", code).Error("request failed")
		if status == http.StatusInternalServerError {
			body.Message = "internal error"
		}
	} else {
		logger.WithField("code", code).Debug(err.Error())
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
