package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReservation(seats ...int) *models.Reservation {
	trip := models.NewTrip("Istanbul", "Ankara", time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC), "10:00", 250, 45)
	return models.NewReservation(uuid.New(), trip, seats)
}

func TestInsertReservation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		res := testReservation(10, 11)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trip_seats .+ FOR UPDATE`).
			WithArgs(res.TripID, "{10,11}").
			WillReturnRows(sqlmock.NewRows([]string{"seat_number", "status"}).
				AddRow(10, "available").
				AddRow(11, "selected"))
		mock.ExpectExec(`INSERT INTO reservations`).
			WithArgs(res.ID, res.UserID, res.TripID, "{10,11}", 500.0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trip_seats SET status = 'occupied'`).
			WithArgs(res.TripID, "{10,11}", "male").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, repo.InsertReservation(ctx, res, models.GenderMale))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Occupied Seat", func(t *testing.T) {
		res := testReservation(3)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number", "status"}).
				AddRow(3, "occupied"))
		mock.ExpectRollback()

		err := repo.InsertReservation(ctx, res, models.GenderFemale)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Seat", func(t *testing.T) {
		res := testReservation(46)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number", "status"}))
		mock.ExpectRollback()

		err := repo.InsertReservation(ctx, res, models.GenderFemale)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seats Changed Under Lock", func(t *testing.T) {
		res := testReservation(1, 2)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"seat_number", "status"}).
				AddRow(1, "available").
				AddRow(2, "available"))
		mock.ExpectExec(`INSERT INTO reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trip_seats`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.InsertReservation(ctx, res, models.GenderMale)
		assert.ErrorIs(t, err, models.ErrSeatUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteReservation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()

	t.Run("Releases Seats", func(t *testing.T) {
		res := testReservation(4, 5)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservations WHERE id = \$1`).
			WithArgs(res.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE trip_seats SET status = 'available', gender = NULL`).
			WithArgs(res.TripID, "{4,5}").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		deleted, err := repo.DeleteReservation(ctx, res)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Gone", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM reservations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		deleted, err := repo.DeleteReservation(ctx, testReservation(1))
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetReservations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	columns := []string{"id", "user_id", "trip_id", "seat_numbers", "total_price", "reservation_date"}

	t.Run("Get", func(t *testing.T) {
		id, userID, tripID := uuid.New(), uuid.New(), uuid.New()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(id.String(), userID.String(), tripID.String(), "{10,11}", 500.0, time.Now()))

		res, err := repo.GetReservation(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, []int{10, 11}, res.Seats())
		assert.Equal(t, userID, res.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get Missing", func(t *testing.T) {
		mock.ExpectQuery(`FROM reservations WHERE id = \$1`).
			WillReturnError(sql.ErrNoRows)

		res, err := repo.GetReservation(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("List By User", func(t *testing.T) {
		userID := uuid.New()
		mock.ExpectQuery(`FROM reservations WHERE user_id = \$1 ORDER BY reservation_date DESC`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(uuid.NewString(), userID.String(), uuid.NewString(), "{20}", 300.0, time.Now()).
				AddRow(uuid.NewString(), userID.String(), uuid.NewString(), "{1,2}", 500.0, time.Now().Add(-time.Hour)))

		list, err := repo.ListReservationsByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, []int{20}, list[0].Seats())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
