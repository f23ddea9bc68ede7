package domain

import "github.com/cockroachdb/errors"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled}

// transitions holds the legal status changes. A pending hold can also be
// deleted, see Booking.Release.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed},
	StatusConfirmed: {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown booking status %q", s)
}
