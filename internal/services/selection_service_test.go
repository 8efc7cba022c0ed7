package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSeat_ViewPerSession(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice, bob := userSession(), userSession()

	view, err := env.selection.SelectSeat(ctx, alice, trip.ID, 1, models.GenderFemale)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, view.MySeats)
	require.NotNil(t, view.MyGender)
	assert.Equal(t, models.GenderFemale, *view.MyGender)
	assert.Equal(t, 250.0, view.TotalPrice)
	assert.NotNil(t, view.HoldExpires)
	assert.Equal(t, 1, view.Summary.SelectedSeats)

	view, err = env.selection.SelectSeat(ctx, alice, trip.ID, 2, models.GenderFemale)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, view.MySeats)
	assert.Equal(t, 500.0, view.TotalPrice)

	other, err := env.selection.View(ctx, bob, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, other.MySeats)
	assert.Nil(t, other.MyGender)
	assert.Equal(t, models.SeatStatusSelected, other.Trip.Seat(1).Status)
	assert.Equal(t, 2, other.Summary.SelectedSeats)

	// holds never touch the stored trip
	assert.Equal(t, models.SeatStatusAvailable, env.seat(t, trip.ID, 1).Status)
}

func TestSelectSeat_Conflicts(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice, bob := userSession(), userSession()

	_, err := env.selection.SelectSeat(ctx, alice, trip.ID, 1, models.GenderMale)
	require.NoError(t, err)

	_, err = env.selection.SelectSeat(ctx, bob, trip.ID, 1, models.GenderMale)
	assert.ErrorIs(t, err, models.ErrSeatUnavailable)

	_, err = env.selection.SelectSeat(ctx, bob, trip.ID, 2, models.GenderFemale)
	assert.ErrorIs(t, err, models.ErrGenderConflict)

	_, err = env.selection.SelectSeat(ctx, alice, trip.ID, 3, models.GenderFemale)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = env.selection.SelectSeat(ctx, bob, trip.ID, 99, models.GenderMale)
	assert.ErrorIs(t, err, models.ErrSeatUnavailable)

	_, err = env.selection.SelectSeat(ctx, nil, trip.ID, 5, models.GenderMale)
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SelectionRejected.WithLabelValues("gender_conflict")))

	// occupied seats cannot be selected
	_, err = env.reservations.CreateReservation(ctx, bob, trip.ID, []int{9}, models.GenderMale)
	require.NoError(t, err)
	_, err = env.selection.SelectSeat(ctx, alice, trip.ID, 9, models.GenderMale)
	assert.ErrorIs(t, err, models.ErrSeatUnavailable)
}

func TestSelectSeat_Reselect(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice := userSession()

	_, err := env.selection.SelectSeat(ctx, alice, trip.ID, 4, models.GenderMale)
	require.NoError(t, err)
	view, err := env.selection.SelectSeat(ctx, alice, trip.ID, 4, models.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, view.MySeats)
}

func TestDeselectAndClear(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice, bob := userSession(), userSession()

	for _, n := range []int{1, 2, 3} {
		_, err := env.selection.SelectSeat(ctx, alice, trip.ID, n, models.GenderMale)
		require.NoError(t, err)
	}
	_, err := env.selection.SelectSeat(ctx, bob, trip.ID, 6, models.GenderMale)
	require.NoError(t, err)

	// bob cannot release alice's seats
	view, err := env.selection.DeselectSeats(ctx, bob, trip.ID, []int{1})
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusSelected, view.Trip.Seat(1).Status)

	view, err = env.selection.DeselectSeats(ctx, alice, trip.ID, []int{1, 40})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, view.MySeats)
	assert.Equal(t, models.SeatStatusAvailable, view.Trip.Seat(1).Status)
	assert.Nil(t, view.Trip.Seat(1).Gender)

	view, err = env.selection.ClearSelection(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, view.MySeats)
	assert.Equal(t, 1, view.Summary.SelectedSeats)

	// switching gender works after clearing
	_, err = env.selection.SelectSeat(ctx, alice, trip.ID, 1, models.GenderFemale)
	assert.NoError(t, err)
}

func TestCheckout(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice := userSession()

	_, err := env.selection.Checkout(ctx, alice, trip.ID)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	for _, n := range []int{10, 11} {
		_, err := env.selection.SelectSeat(ctx, alice, trip.ID, n, models.GenderFemale)
		require.NoError(t, err)
	}

	res, err := env.selection.Checkout(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.TotalPrice)
	assert.Equal(t, "10, 11", res.SeatNumbersString())

	for _, n := range []int{10, 11} {
		seat := env.seat(t, trip.ID, n)
		assert.Equal(t, models.SeatStatusOccupied, seat.Status)
		assert.Equal(t, models.GenderFemale, *seat.Gender)
	}

	view, err := env.selection.View(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, view.MySeats)
	assert.Equal(t, 0, view.Summary.SelectedSeats)
	assert.Equal(t, 2, view.Summary.OccupiedSeats)
}

func TestCreateReservation_RespectsLiveHolds(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice, bob, carol := userSession(), userSession(), userSession()

	for _, n := range []int{1, 7} {
		_, err := env.selection.SelectSeat(ctx, alice, trip.ID, n, models.GenderMale)
		require.NoError(t, err)
	}

	_, err := env.reservations.CreateReservation(ctx, bob, trip.ID, []int{2}, models.GenderFemale)
	assert.ErrorIs(t, err, models.ErrGenderConflict)
	assert.Equal(t, models.SeatStatusAvailable, env.seat(t, trip.ID, 2).Status)

	// a held seat itself can still be booked directly
	_, err = env.reservations.CreateReservation(ctx, carol, trip.ID, []int{7}, models.GenderFemale)
	require.NoError(t, err)

	_, err = env.reservations.CreateReservation(ctx, bob, trip.ID, []int{2}, models.GenderMale)
	require.NoError(t, err)

	view, err := env.selection.View(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, view.MySeats)
	assert.Equal(t, models.SeatStatusOccupied, view.Trip.Seat(7).Status)

	res, err := env.selection.Checkout(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", res.SeatNumbersString())
}

func TestSelection_ExpiredHolds(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	alice, bob := userSession(), userSession()

	env.selection.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := env.selection.SelectSeat(ctx, alice, trip.ID, 1, models.GenderMale)
	require.NoError(t, err)
	env.selection.now = time.Now

	view, err := env.selection.View(ctx, alice, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, view.MySeats)
	assert.Equal(t, models.SeatStatusAvailable, view.Trip.Seat(1).Status)

	// a lapsed hold does not block others
	_, err = env.selection.SelectSeat(ctx, bob, trip.ID, 2, models.GenderFemale)
	require.NoError(t, err)

	purged, err := env.selection.PurgeExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HoldsPurged))
}

func TestSelection_UnknownTrip(t *testing.T) {
	env := setupServiceTest(t)
	trip := env.addTrip(t, "Istanbul", "Ankara", "2030-06-01", 250)
	require.NoError(t, env.reservations.DeleteTrip(context.Background(), adminSession(), trip.ID))

	_, err := env.selection.View(context.Background(), userSession(), trip.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = env.selection.SelectSeat(context.Background(), userSession(), trip.ID, 1, models.GenderMale)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
