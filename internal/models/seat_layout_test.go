package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjacentSeats(t *testing.T) {
	tests := []struct {
		name     string
		seat     int
		total    int
		expected []int
	}{
		{"first of pair", 1, 45, []int{2}},
		{"second of pair", 2, 45, []int{1}},
		{"lone seat", 3, 45, nil},
		{"next row pair", 4, 45, []int{5}},
		{"last seat is lone", 45, 45, nil},
		{"pair start without partner", 4, 4, nil},
		{"out of range", 46, 45, nil},
		{"zero", 0, 45, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AdjacentSeats(tt.seat, tt.total))
		})
	}
}

func TestAdjacentSeats_Symmetric(t *testing.T) {
	for total := 1; total <= 46; total++ {
		for n := 1; n <= total; n++ {
			for _, m := range AdjacentSeats(n, total) {
				assert.Contains(t, AdjacentSeats(m, total), n, "seat %d/%d", n, total)
			}
		}
	}
}

func TestBuildSeatLayout(t *testing.T) {
	layout := BuildSeatLayout(5)

	require.Len(t, layout.Rows, 2)
	assert.Equal(t, []int{1, 2}, layout.Rows[0].LeftSeats)
	require.NotNil(t, layout.Rows[0].RightSeat)
	assert.Equal(t, 3, *layout.Rows[0].RightSeat)
	assert.Equal(t, []int{4, 5}, layout.Rows[1].LeftSeats)
	assert.Nil(t, layout.Rows[1].RightSeat)

	assert.Len(t, BuildSeatLayout(45).Rows, 15)
	assert.Empty(t, BuildSeatLayout(0).Rows)
}
