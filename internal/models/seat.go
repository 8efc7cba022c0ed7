package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// SeatStatus represents the lifecycle state of a seat on a trip
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusSelected  SeatStatus = "selected"
	SeatStatusOccupied  SeatStatus = "occupied"
)

// Gender of the passenger holding a seat
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts "male"/"female" in any case.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g, nil
	}
	return "", invalidInput("unknown gender %q", s)
}

// Valid reports whether g is one of the known genders
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Ptr returns a pointer to a copy of g
func (g Gender) Ptr() *Gender {
	return &g
}

// Value implements driver.Valuer
func (g Gender) Value() (driver.Value, error) {
	return string(g), nil
}

// Scan implements sql.Scanner
func (g *Gender) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*g = Gender(v)
	case []byte:
		*g = Gender(v)
	default:
		return fmt.Errorf("cannot scan %T into Gender", src)
	}
	return nil
}

// Seat is a single numbered seat on a trip.
// Gender is set exactly when Status is selected or occupied.
type Seat struct {
	Number int        `json:"seat_number" db:"seat_number"`
	Status SeatStatus `json:"status" db:"status"`
	Gender *Gender    `json:"gender,omitempty" db:"gender"`
}

// IsAvailable reports whether the seat can be selected
func (s Seat) IsAvailable() bool { return s.Status == SeatStatusAvailable }

// IsSelected reports whether the seat is held by an in-progress selection
func (s Seat) IsSelected() bool { return s.Status == SeatStatusSelected }

// IsOccupied reports whether the seat belongs to a committed reservation
func (s Seat) IsOccupied() bool { return s.Status == SeatStatusOccupied }

// holdsGender reports whether the seat counts for the adjacency rule
func (s Seat) holdsGender() bool {
	return (s.Status == SeatStatusSelected || s.Status == SeatStatusOccupied) && s.Gender != nil
}

func (s *Seat) set(status SeatStatus, gender *Gender) {
	s.Status = status
	if gender == nil {
		s.Gender = nil
		return
	}
	g := *gender
	s.Gender = &g
}
