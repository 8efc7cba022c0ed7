package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var departureTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// DateLayout is the wire format of a trip's departure date
const DateLayout = "2006-01-02"

// Trip is a scheduled bus journey and the state of every seat on it.
// The seat list always holds seats 1..TotalSeats in order; only status and
// gender of a seat ever change.
type Trip struct {
	ID            uuid.UUID `json:"id" db:"id"`
	DepartureCity string    `json:"departure_city" db:"departure_city"`
	ArrivalCity   string    `json:"arrival_city" db:"arrival_city"`
	DepartureDate time.Time `json:"departure_date" db:"departure_date"`
	DepartureTime string    `json:"departure_time" db:"departure_time"`
	Price         float64   `json:"price" db:"price"`
	TotalSeats    int       `json:"total_seats" db:"total_seats"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	Seats         []Seat    `json:"seats,omitempty" db:"-"`
}

// TripSeatSummary is a count of seats per status
type TripSeatSummary struct {
	TripID         uuid.UUID `json:"trip_id"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	SelectedSeats  int       `json:"selected_seats"`
	OccupiedSeats  int       `json:"occupied_seats"`
}

// CreateTripRequest is the payload for adding a trip
type CreateTripRequest struct {
	DepartureCity string  `json:"departure_city" binding:"required"`
	ArrivalCity   string  `json:"arrival_city" binding:"required"`
	DepartureDate string  `json:"departure_date" binding:"required"` // YYYY-MM-DD
	DepartureTime string  `json:"departure_time" binding:"required"` // HH:MM
	Price         float64 `json:"price" binding:"required,gt=0"`
	TotalSeats    int     `json:"total_seats" binding:"omitempty,min=1,max=120"`
}

// TripDetailResponse is a trip with its seats, counts and row plan
type TripDetailResponse struct {
	Trip    *Trip           `json:"trip"`
	Summary TripSeatSummary `json:"summary"`
	Layout  SeatLayout      `json:"layout"`
}

// NewTrip builds a trip with every seat available
func NewTrip(departureCity, arrivalCity string, departureDate time.Time, departureTime string, price float64, totalSeats int) *Trip {
	trip := &Trip{
		ID:            uuid.New(),
		DepartureCity: strings.TrimSpace(departureCity),
		ArrivalCity:   strings.TrimSpace(arrivalCity),
		DepartureDate: departureDate,
		DepartureTime: departureTime,
		Price:         price,
		TotalSeats:    totalSeats,
		CreatedAt:     time.Now(),
	}
	trip.Seats = NewSeats(totalSeats)
	return trip
}

// NewSeats returns seats 1..total, all available
func NewSeats(total int) []Seat {
	if total <= 0 {
		return nil
	}
	seats := make([]Seat, total)
	for i := range seats {
		seats[i] = Seat{Number: i + 1, Status: SeatStatusAvailable}
	}
	return seats
}

// ParseDepartureDate parses a YYYY-MM-DD date
func ParseDepartureDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalidInput("departure date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// Validate checks the structural invariants of the trip
func (t *Trip) Validate() error {
	if strings.TrimSpace(t.DepartureCity) == "" {
		return invalidInput("departure city is required")
	}
	if strings.TrimSpace(t.ArrivalCity) == "" {
		return invalidInput("arrival city is required")
	}
	if t.DepartureDate.IsZero() {
		return invalidInput("departure date is required")
	}
	if !departureTimePattern.MatchString(t.DepartureTime) {
		return invalidInput("departure time %q must be HH:MM", t.DepartureTime)
	}
	if t.Price <= 0 {
		return invalidInput("price must be positive")
	}
	if t.TotalSeats <= 0 {
		return invalidInput("total seats must be positive")
	}
	if len(t.Seats) != t.TotalSeats {
		return invalidInput("trip has %d seats, expected %d", len(t.Seats), t.TotalSeats)
	}
	for i, seat := range t.Seats {
		if seat.Number != i+1 {
			return invalidInput("seat at position %d is numbered %d", i+1, seat.Number)
		}
	}
	return nil
}

// Seat returns the seat with the given number, or nil
func (t *Trip) Seat(number int) *Seat {
	if number < 1 || number > len(t.Seats) {
		return nil
	}
	seat := &t.Seats[number-1]
	if seat.Number != number {
		return nil
	}
	return seat
}

// CanSelectSeatWithGender runs only the adjacency rule: no neighbour of the
// seat may be selected or occupied by a different gender.
func (t *Trip) CanSelectSeatWithGender(number int, gender Gender) bool {
	for _, n := range AdjacentSeats(number, t.TotalSeats) {
		adjacent := t.Seat(n)
		if adjacent == nil || !adjacent.holdsGender() {
			continue
		}
		if *adjacent.Gender != gender {
			return false
		}
	}
	return true
}

// SelectSeatWithGender moves an available seat to selected for the given
// gender. Every booking path goes through this check. On failure the trip is
// left unchanged.
func (t *Trip) SelectSeatWithGender(number int, gender Gender) error {
	if !gender.Valid() {
		return invalidInput("unknown gender %q", gender)
	}
	seat := t.Seat(number)
	if seat == nil {
		return fmt.Errorf("%w: seat %d does not exist", ErrSeatUnavailable, number)
	}
	if !seat.IsAvailable() {
		return fmt.Errorf("%w: seat %d is %s", ErrSeatUnavailable, number, seat.Status)
	}
	if !t.CanSelectSeatWithGender(number, gender) {
		return fmt.Errorf("%w: seat %d", ErrGenderConflict, number)
	}

	seat.set(SeatStatusSelected, &gender)
	return nil
}

// DeselectSeats returns selected seats among numbers to available. Seats in
// any other state, or unknown numbers, are ignored.
func (t *Trip) DeselectSeats(numbers []int) {
	for _, n := range numbers {
		if seat := t.Seat(n); seat != nil && seat.IsSelected() {
			seat.set(SeatStatusAvailable, nil)
		}
	}
}

// ClearSelectedSeats deselects every selected seat
func (t *Trip) ClearSelectedSeats() {
	t.DeselectSeats(t.SelectedSeatNumbers())
}

// BookSeats commits selected seats to occupied, keeping their gender. Either
// every seat is booked or none is.
func (t *Trip) BookSeats(numbers []int) error {
	if len(numbers) == 0 {
		return invalidInput("no seats to book")
	}
	for _, n := range numbers {
		seat := t.Seat(n)
		if seat == nil {
			return fmt.Errorf("%w: seat %d does not exist", ErrSeatUnavailable, n)
		}
		if !seat.IsSelected() {
			return fmt.Errorf("%w: seat %d is %s, not selected", ErrSeatUnavailable, n, seat.Status)
		}
	}

	for _, n := range numbers {
		seat := t.Seat(n)
		seat.set(SeatStatusOccupied, seat.Gender)
	}
	return nil
}

// OccupySeats marks seats occupied by gender regardless of current state.
// Stores use it to apply a committed reservation.
func (t *Trip) OccupySeats(numbers []int, gender Gender) {
	for _, n := range numbers {
		if seat := t.Seat(n); seat != nil {
			seat.set(SeatStatusOccupied, &gender)
		}
	}
}

// ReleaseSeats returns occupied seats to available after a cancellation
func (t *Trip) ReleaseSeats(numbers []int) {
	for _, n := range numbers {
		if seat := t.Seat(n); seat != nil && seat.IsOccupied() {
			seat.set(SeatStatusAvailable, nil)
		}
	}
}

// AvailableSeatsCount returns the number of available seats
func (t *Trip) AvailableSeatsCount() int {
	return t.countStatus(SeatStatusAvailable)
}

// OccupiedSeatsCount returns the number of occupied seats
func (t *Trip) OccupiedSeatsCount() int {
	return t.countStatus(SeatStatusOccupied)
}

// SelectedSeats returns copies of the selected seats
func (t *Trip) SelectedSeats() []Seat {
	var selected []Seat
	for _, seat := range t.Seats {
		if seat.IsSelected() {
			selected = append(selected, seat)
		}
	}
	return selected
}

// SelectedSeatNumbers returns the numbers of the selected seats
func (t *Trip) SelectedSeatNumbers() []int {
	var numbers []int
	for _, seat := range t.Seats {
		if seat.IsSelected() {
			numbers = append(numbers, seat.Number)
		}
	}
	return numbers
}

// Summary counts seats per status
func (t *Trip) Summary() TripSeatSummary {
	return TripSeatSummary{
		TripID:         t.ID,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeatsCount(),
		SelectedSeats:  t.countStatus(SeatStatusSelected),
		OccupiedSeats:  t.OccupiedSeatsCount(),
	}
}

// Clone returns a deep copy of the trip
func (t *Trip) Clone() *Trip {
	clone := *t
	clone.Seats = make([]Seat, len(t.Seats))
	for i, seat := range t.Seats {
		clone.Seats[i] = Seat{Number: seat.Number, Status: seat.Status}
		if seat.Gender != nil {
			clone.Seats[i].Gender = seat.Gender.Ptr()
		}
	}
	return &clone
}

// DepartsAt combines the departure date and time in the date's location
func (t *Trip) DepartsAt() time.Time {
	clock, err := time.Parse("15:04", t.DepartureTime)
	if err != nil {
		return t.DepartureDate
	}
	y, m, d := t.DepartureDate.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, t.DepartureDate.Location())
}

func (t *Trip) countStatus(status SeatStatus) int {
	count := 0
	for _, seat := range t.Seats {
		if seat.Status == status {
			count++
		}
	}
	return count
}

// SortTripsByDeparture orders trips by departure date, then time
func SortTripsByDeparture(trips []Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].DepartsAt().Before(trips[j].DepartsAt())
	})
}
