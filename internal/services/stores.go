package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// TripStore persists trips together with their seats. Lookups return
// nil, nil for a missing trip.
type TripStore interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	ListTrips(ctx context.Context) ([]models.Trip, error)
	SearchTrips(ctx context.Context, departure, arrival string) ([]models.Trip, error)
	DeleteTrip(ctx context.Context, id uuid.UUID) (bool, error)
	DeletePastTrips(ctx context.Context, before time.Time) (int64, error)
}

// ReservationStore persists reservations. InsertReservation writes the row
// before occupying its seats and DeleteReservation removes the row before
// releasing them; each is atomic.
type ReservationStore interface {
	InsertReservation(ctx context.Context, res *models.Reservation, gender models.Gender) error
	DeleteReservation(ctx context.Context, res *models.Reservation) (bool, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
}

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStore persists hashed refresh tokens
type RefreshTokenStore interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, deviceType, ipAddress, userAgent string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
	UpdateLastUsed(ctx context.Context, token string) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// SelectionStore keeps ephemeral seat holds. ListHolds returns live holds
// only; PutHold reports false when another user already holds the seat.
type SelectionStore interface {
	ListHolds(ctx context.Context, tripID uuid.UUID) ([]models.SelectionHold, error)
	PutHold(ctx context.Context, hold models.SelectionHold) (bool, error)
	ReleaseHolds(ctx context.Context, tripID, userID uuid.UUID, seatNumbers []int) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
