package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// TripRepository handles trips and trip_seats database operations
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, departure_city, arrival_city, departure_date, departure_time, price, total_seats, created_at`

type seatRow struct {
	TripID uuid.UUID      `db:"trip_id"`
	Number int            `db:"seat_number"`
	Status string         `db:"status"`
	Gender sql.NullString `db:"gender"`
}

func (r seatRow) toSeat() models.Seat {
	seat := models.Seat{Number: r.Number, Status: models.SeatStatus(r.Status)}
	if r.Gender.Valid {
		seat.Gender = models.Gender(r.Gender.String).Ptr()
	}
	return seat
}

// CreateTrip inserts the trip and its full seat set in one transaction
func (r *TripRepository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		trip.ID, trip.DepartureCity, trip.ArrivalCity, trip.DepartureDate,
		trip.DepartureTime, trip.Price, trip.TotalSeats, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	numbers := make(pq.Int64Array, len(trip.Seats))
	statuses := make(pq.StringArray, len(trip.Seats))
	genders := make(pq.StringArray, len(trip.Seats))
	for i, seat := range trip.Seats {
		numbers[i] = int64(seat.Number)
		statuses[i] = string(seat.Status)
		if seat.Gender != nil {
			genders[i] = string(*seat.Gender)
		}
	}

	seatQuery := `
		INSERT INTO trip_seats (trip_id, seat_number, status, gender)
		SELECT $1, s.seat_number, s.status, NULLIF(s.gender, '')
		FROM unnest($2::int[], $3::text[], $4::text[]) AS s(seat_number, status, gender)
	`
	if _, err := tx.ExecContext(ctx, seatQuery, trip.ID, numbers, statuses, genders); err != nil {
		return fmt.Errorf("failed to create trip seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trip: %w", err)
	}
	return nil
}

// GetTrip loads a trip with its seats. Returns nil, nil when not found.
func (r *TripRepository) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	if err := r.db.GetContext(ctx, &trip, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	trips := []models.Trip{trip}
	if err := r.attachSeats(ctx, trips); err != nil {
		return nil, err
	}
	return &trips[0], nil
}

// ListTrips returns every trip ordered by departure
func (r *TripRepository) ListTrips(ctx context.Context) ([]models.Trip, error) {
	return r.SearchTrips(ctx, "", "")
}

// SearchTrips matches departure and arrival cities by case-insensitive
// substring. A blank term does not constrain its field.
func (r *TripRepository) SearchTrips(ctx context.Context, departure, arrival string) ([]models.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE ($1 = '' OR departure_city ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR arrival_city ILIKE '%' || $2 || '%')
		ORDER BY departure_date ASC, departure_time ASC
	`

	trips := []models.Trip{}
	err := r.db.SelectContext(ctx, &trips, query,
		escapeLike(strings.TrimSpace(departure)),
		escapeLike(strings.TrimSpace(arrival)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	if err := r.attachSeats(ctx, trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// DeleteTrip removes a trip; seats and reservations cascade
func (r *TripRepository) DeleteTrip(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete trip: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeletePastTrips removes trips that departed before the given date
func (r *TripRepository) DeletePastTrips(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE departure_date < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past trips: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (r *TripRepository) attachSeats(ctx context.Context, trips []models.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	ids := make(pq.StringArray, len(trips))
	index := make(map[uuid.UUID]int, len(trips))
	for i, trip := range trips {
		ids[i] = trip.ID.String()
		index[trip.ID] = i
		trips[i].Seats = make([]models.Seat, 0, trip.TotalSeats)
	}

	query := `
		SELECT trip_id, seat_number, status, gender
		FROM trip_seats
		WHERE trip_id = ANY($1::uuid[])
		ORDER BY trip_id, seat_number
	`

	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, ids); err != nil {
		return fmt.Errorf("failed to get trip seats: %w", err)
	}

	for _, row := range rows {
		if i, ok := index[row.TripID]; ok {
			trips[i].Seats = append(trips[i].Seats, row.toSeat())
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
