package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

var migrations = []string{
	createUsersTable,
	createUsersEmailIndex,
	createTripsTable,
	createTripSeatsTable,
	createReservationsTable,
	createRefreshTokensTable,
	createAuditLogsTable,
	createTripsDepartureIndex,
	createReservationsUserIndex,
}

// RunMigrations creates the schema if it does not exist yet
func RunMigrations(ctx context.Context, db DB, logger *logrus.Logger) error {
	logger.Info("Running database migrations...")

	for i, migration := range migrations {
		logger.WithField("step", i+1).Debug("Running migration")
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logger.WithField("count", len(migrations)).Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    password_hash VARCHAR(100) NOT NULL,
    full_name VARCHAR(200) NOT NULL,
    phone VARCHAR(32) NOT NULL,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    last_login_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createUsersEmailIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (LOWER(email));`

const createTripsTable = `
CREATE TABLE IF NOT EXISTS trips (
    id UUID PRIMARY KEY,
    departure_city VARCHAR(100) NOT NULL,
    arrival_city VARCHAR(100) NOT NULL,
    departure_date DATE NOT NULL,
    departure_time VARCHAR(5) NOT NULL,
    price NUMERIC(10,2) NOT NULL CHECK (price > 0),
    total_seats INTEGER NOT NULL CHECK (total_seats > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createTripSeatsTable = `
CREATE TABLE IF NOT EXISTS trip_seats (
    trip_id UUID NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    seat_number INTEGER NOT NULL CHECK (seat_number > 0),
    status VARCHAR(16) NOT NULL DEFAULT 'available'
        CHECK (status IN ('available', 'selected', 'occupied')),
    gender VARCHAR(8) CHECK (gender IN ('male', 'female')),
    CHECK ((status = 'available') = (gender IS NULL)),
    PRIMARY KEY (trip_id, seat_number)
);`

const createReservationsTable = `
CREATE TABLE IF NOT EXISTS reservations (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    trip_id UUID NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    seat_numbers INTEGER[] NOT NULL CHECK (cardinality(seat_numbers) > 0),
    total_price NUMERIC(12,2) NOT NULL,
    reservation_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createRefreshTokensTable = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash VARCHAR(64) NOT NULL UNIQUE,
    device_type VARCHAR(32),
    ip_address VARCHAR(64),
    user_agent TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_used_at TIMESTAMPTZ,
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at TIMESTAMPTZ
);`

const createAuditLogsTable = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID,
    action VARCHAR(64) NOT NULL,
    entity_type VARCHAR(32),
    entity_id UUID,
    ip_address VARCHAR(64),
    user_agent TEXT,
    details JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createTripsDepartureIndex = `
CREATE INDEX IF NOT EXISTS idx_trips_departure ON trips (departure_date, departure_time);`

const createReservationsUserIndex = `
CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations (user_id, reservation_date DESC);`
