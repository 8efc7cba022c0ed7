package models

import (
	"time"

	"github.com/google/uuid"
)

// SelectionHold is a temporary claim on a seat while a user assembles a
// booking. Holds live outside the reservation store and expire on their own.
type SelectionHold struct {
	TripID     uuid.UUID `json:"trip_id"`
	SeatNumber int       `json:"seat_number"`
	Gender     Gender    `json:"gender"`
	UserID     uuid.UUID `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the hold has lapsed at now
func (h SelectionHold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// SelectSeatRequest adds one seat to the caller's selection
type SelectSeatRequest struct {
	SeatNumber int    `json:"seat_number" binding:"required,min=1"`
	Gender     string `json:"gender" binding:"required"`
}

// DeselectSeatsRequest drops seats from the caller's selection; empty means all
type DeselectSeatsRequest struct {
	SeatNumbers []int `json:"seat_numbers"`
}

// SelectionView is a trip as seen by one user: persisted seats overlaid with
// every live hold, plus the seats this user holds
type SelectionView struct {
	Trip        *Trip           `json:"trip"`
	Summary     TripSeatSummary `json:"summary"`
	MySeats     []int           `json:"my_seats"`
	MyGender    *Gender         `json:"my_gender,omitempty"`
	TotalPrice  float64         `json:"total_price"`
	HoldExpires *time.Time      `json:"hold_expires_at,omitempty"`
}
