package models

import (
	"errors"
	"fmt"
)

// Reservation engine error taxonomy. Callers match with errors.Is; detail is
// attached by wrapping, e.g. fmt.Errorf("%w: seat %d is occupied", ErrSeatUnavailable, n).
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrSeatUnavailable  = errors.New("seat unavailable")
	ErrGenderConflict   = errors.New("gender conflict with adjacent seat")
	ErrInvalidInput     = errors.New("invalid input")
)

var (
	ErrTripNotFound        = fmt.Errorf("trip %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
)

// Account errors
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many attempts")
)

// invalidInput wraps ErrInvalidInput with a formatted reason.
func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
