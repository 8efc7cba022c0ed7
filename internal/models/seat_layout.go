package models

// Buses use a 2+1 plan: each row is a side-by-side pair followed by a single
// seat across the aisle. With p = (n-1) mod 3, p=0 is the aisle-side half of
// the pair, p=1 the window-side half and p=2 the lone seat.

const seatsPerRow = 3

// DefaultTotalSeats is the seat count of a newly added trip
const DefaultTotalSeats = 45

// AdjacentSeats returns the seats sharing a pair with seatNumber. The lone
// seat of a row has no neighbour.
func AdjacentSeats(seatNumber, totalSeats int) []int {
	if seatNumber < 1 || seatNumber > totalSeats {
		return nil
	}

	switch (seatNumber - 1) % seatsPerRow {
	case 0:
		if seatNumber+1 <= totalSeats {
			return []int{seatNumber + 1}
		}
	case 1:
		return []int{seatNumber - 1}
	}
	return nil
}

// SeatLayout is the row-by-row rendering of a trip's seat plan
type SeatLayout struct {
	TotalSeats int       `json:"total_seats"`
	Rows       []SeatRow `json:"rows"`
}

// SeatRow is one row of the 2+1 plan
type SeatRow struct {
	RowNumber int   `json:"row_number"`
	LeftSeats []int `json:"left_seats"`
	RightSeat *int  `json:"right_seat,omitempty"`
}

// BuildSeatLayout groups seats 1..totalSeats into rows
func BuildSeatLayout(totalSeats int) SeatLayout {
	layout := SeatLayout{TotalSeats: totalSeats}
	if totalSeats <= 0 {
		return layout
	}

	for first := 1; first <= totalSeats; first += seatsPerRow {
		row := SeatRow{RowNumber: (first-1)/seatsPerRow + 1, LeftSeats: []int{first}}
		if first+1 <= totalSeats {
			row.LeftSeats = append(row.LeftSeats, first+1)
		}
		if first+2 <= totalSeats {
			right := first + 2
			row.RightSeat = &right
		}
		layout.Rows = append(layout.Rows, row)
	}
	return layout
}
