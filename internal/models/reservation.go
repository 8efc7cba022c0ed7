package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Reservation is a committed booking of one or more seats on a trip by a user
type Reservation struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	TripID          uuid.UUID     `json:"trip_id" db:"trip_id"`
	SeatNumbers     pq.Int64Array `json:"seat_numbers" db:"seat_numbers"`
	TotalPrice      float64       `json:"total_price" db:"total_price"`
	ReservationDate time.Time     `json:"reservation_date" db:"reservation_date"`

	Trip *Trip `json:"trip,omitempty" db:"-"`
}

// CreateReservationRequest books seats on a trip directly
type CreateReservationRequest struct {
	SeatNumbers []int  `json:"seat_numbers" binding:"required,min=1,dive,min=1"`
	Gender      string `json:"gender" binding:"required"`
}

// NewReservation prices the seats at the trip's per-seat price
func NewReservation(userID uuid.UUID, trip *Trip, seatNumbers []int) *Reservation {
	seats := make(pq.Int64Array, len(seatNumbers))
	for i, n := range seatNumbers {
		seats[i] = int64(n)
	}
	return &Reservation{
		ID:              uuid.New(),
		UserID:          userID,
		TripID:          trip.ID,
		SeatNumbers:     seats,
		TotalPrice:      trip.Price * float64(len(seatNumbers)),
		ReservationDate: time.Now(),
	}
}

// Seats returns the reserved seat numbers
func (r *Reservation) Seats() []int {
	seats := make([]int, len(r.SeatNumbers))
	for i, n := range r.SeatNumbers {
		seats[i] = int(n)
	}
	return seats
}

// SeatNumbersString renders the seats in ascending order, e.g. "10, 11"
func (r *Reservation) SeatNumbersString() string {
	seats := r.Seats()
	sort.Ints(seats)
	parts := make([]string, len(seats))
	for i, n := range seats {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// Summary is the shareable text form of the reservation
func (r *Reservation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reservation ID: %s\n", r.ID)
	if r.Trip != nil {
		fmt.Fprintf(&b, "Route: %s -> %s\n", r.Trip.DepartureCity, r.Trip.ArrivalCity)
		fmt.Fprintf(&b, "Date: %s\n", r.Trip.DepartureDate.Format(DateLayout))
		fmt.Fprintf(&b, "Time: %s\n", r.Trip.DepartureTime)
	}
	fmt.Fprintf(&b, "Seats: %s\n", r.SeatNumbersString())
	fmt.Fprintf(&b, "Total Price: %.2f", r.TotalPrice)
	return b.String()
}

// ValidateSeatNumbers requires a non-empty list of distinct positive numbers
func ValidateSeatNumbers(numbers []int) error {
	if len(numbers) == 0 {
		return invalidInput("at least one seat is required")
	}
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if n < 1 {
			return invalidInput("seat number %d is out of range", n)
		}
		if _, dup := seen[n]; dup {
			return invalidInput("seat %d listed twice", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
