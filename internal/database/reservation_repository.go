package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// ReservationRepository handles reservations and the seat updates that go with them
type ReservationRepository struct {
	db DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, user_id, trip_id, seat_numbers, total_price, reservation_date`

// InsertReservation writes the reservation row and then marks its seats
// occupied by gender, in one transaction. Seats are row-locked first; if any
// is missing or already occupied nothing is written.
func (r *ReservationRepository) InsertReservation(ctx context.Context, res *models.Reservation, gender models.Gender) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockQuery := `
		SELECT seat_number, status
		FROM trip_seats
		WHERE trip_id = $1 AND seat_number = ANY($2)
		ORDER BY seat_number
		FOR UPDATE
	`
	var locked []struct {
		Number int    `db:"seat_number"`
		Status string `db:"status"`
	}
	if err := tx.SelectContext(ctx, &locked, lockQuery, res.TripID, res.SeatNumbers); err != nil {
		return fmt.Errorf("failed to lock seats: %w", err)
	}
	if len(locked) != len(res.SeatNumbers) {
		return fmt.Errorf("%w: some seats do not exist", models.ErrSeatUnavailable)
	}
	for _, seat := range locked {
		if seat.Status == string(models.SeatStatusOccupied) {
			return fmt.Errorf("%w: seat %d is occupied", models.ErrSeatUnavailable, seat.Number)
		}
	}

	insertQuery := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		res.ID, res.UserID, res.TripID, res.SeatNumbers, res.TotalPrice, res.ReservationDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	occupyQuery := `
		UPDATE trip_seats
		SET status = 'occupied', gender = $3
		WHERE trip_id = $1 AND seat_number = ANY($2) AND status <> 'occupied'
	`
	result, err := tx.ExecContext(ctx, occupyQuery, res.TripID, res.SeatNumbers, string(gender))
	if err != nil {
		return fmt.Errorf("failed to occupy seats: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != int64(len(res.SeatNumbers)) {
		return fmt.Errorf("%w: seats changed during booking", models.ErrSeatUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// DeleteReservation removes the reservation and then releases its seats.
// Returns false when the reservation no longer exists.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, res *models.Reservation) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, res.ID)
	if err != nil {
		return false, fmt.Errorf("failed to delete reservation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	releaseQuery := `
		UPDATE trip_seats
		SET status = 'available', gender = NULL
		WHERE trip_id = $1 AND seat_number = ANY($2) AND status = 'occupied'
	`
	if _, err := tx.ExecContext(ctx, releaseQuery, res.TripID, res.SeatNumbers); err != nil {
		return false, fmt.Errorf("failed to release seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return true, nil
}

// GetReservation returns nil, nil when the reservation does not exist
func (r *ReservationRepository) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// ListReservationsByUser returns the user's reservations, newest first
func (r *ReservationRepository) ListReservationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY reservation_date DESC
	`

	reservations := []models.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}
