package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrInvalidQuantity        = errors.New("ticket count must be positive")
	ErrInsufficientInventory  = errors.New("not enough tickets available")
	ErrExpired                = errors.New("reservation has expired")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidStateTransition = errors.Wrap(ErrInvalidState, "invalid state transition")
	ErrForbidden              = errors.New("forbidden")
	ErrEventAlreadyOccurred   = errors.New("event already occurred")
	ErrSystemBusy             = errors.New("system busy, please try again in a moment")
	ErrInterrupted            = errors.New("operation interrupted, please try again")
)

// InsufficientInventoryError reports how many tickets were asked for and how
// many could actually be granted. Callers render both numbers, so the message
// format is stable.
type InsufficientInventoryError struct {
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough tickets available. Available: %d, Requested: %d", e.Available, e.Requested)
}

func (e *InsufficientInventoryError) Unwrap() error {
	return ErrInsufficientInventory
}

// NewInsufficientInventory builds the error returned when a request exceeds
// what is truly available. Negative availability is reported as zero.
func NewInsufficientInventory(requested, available int) error {
	if available < 0 {
		available = 0
	}
	return &InsufficientInventoryError{Requested: requested, Available: available}
}
