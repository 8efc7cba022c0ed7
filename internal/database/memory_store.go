package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// MemoryStore keeps trips, reservations, users and refresh tokens in process
// memory. It satisfies the same contracts as the Postgres repositories and
// backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu            sync.RWMutex
	trips         map[uuid.UUID]*models.Trip
	reservations  map[uuid.UUID]*models.Reservation
	users         map[uuid.UUID]*models.User
	refreshTokens map[string]*models.RefreshToken
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:         make(map[uuid.UUID]*models.Trip),
		reservations:  make(map[uuid.UUID]*models.Reservation),
		users:         make(map[uuid.UUID]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

// CreateTrip stores a copy of the trip
func (s *MemoryStore) CreateTrip(_ context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[trip.ID]; exists {
		return fmt.Errorf("failed to create trip: trip %s already exists", trip.ID)
	}
	s.trips[trip.ID] = trip.Clone()
	return nil
}

// GetTrip returns a copy of the trip, or nil when missing
func (s *MemoryStore) GetTrip(_ context.Context, id uuid.UUID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips[id]
	if !ok {
		return nil, nil
	}
	return trip.Clone(), nil
}

// ListTrips returns every trip ordered by departure
func (s *MemoryStore) ListTrips(ctx context.Context) ([]models.Trip, error) {
	return s.SearchTrips(ctx, "", "")
}

// SearchTrips filters by case-insensitive substring on both cities
func (s *MemoryStore) SearchTrips(_ context.Context, departure, arrival string) ([]models.Trip, error) {
	departure = strings.ToLower(strings.TrimSpace(departure))
	arrival = strings.ToLower(strings.TrimSpace(arrival))

	s.mu.RLock()
	defer s.mu.RUnlock()

	trips := []models.Trip{}
	for _, trip := range s.trips {
		if departure != "" && !strings.Contains(strings.ToLower(trip.DepartureCity), departure) {
			continue
		}
		if arrival != "" && !strings.Contains(strings.ToLower(trip.ArrivalCity), arrival) {
			continue
		}
		trips = append(trips, *trip.Clone())
	}
	models.SortTripsByDeparture(trips)
	return trips, nil
}

// DeleteTrip removes the trip and its reservations
func (s *MemoryStore) DeleteTrip(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteTripLocked(id), nil
}

// DeletePastTrips removes trips departing before the given date
func (s *MemoryStore) DeletePastTrips(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, trip := range s.trips {
		if trip.DepartureDate.Before(before) && s.deleteTripLocked(id) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) deleteTripLocked(id uuid.UUID) bool {
	if _, ok := s.trips[id]; !ok {
		return false
	}
	delete(s.trips, id)
	for resID, res := range s.reservations {
		if res.TripID == id {
			delete(s.reservations, resID)
		}
	}
	return true
}

// InsertReservation stores the reservation, then occupies its seats
func (s *MemoryStore) InsertReservation(_ context.Context, res *models.Reservation, gender models.Gender) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[res.TripID]
	if !ok {
		return models.ErrTripNotFound
	}
	seats := res.Seats()
	for _, n := range seats {
		seat := trip.Seat(n)
		if seat == nil {
			return fmt.Errorf("%w: seat %d does not exist", models.ErrSeatUnavailable, n)
		}
		if seat.IsOccupied() {
			return fmt.Errorf("%w: seat %d is occupied", models.ErrSeatUnavailable, n)
		}
	}

	stored := copyReservation(res)
	stored.Trip = nil
	s.reservations[res.ID] = stored
	trip.OccupySeats(seats, gender)
	return nil
}

// DeleteReservation removes the reservation, then releases its seats
func (s *MemoryStore) DeleteReservation(_ context.Context, res *models.Reservation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.reservations[res.ID]
	if !ok {
		return false, nil
	}
	delete(s.reservations, res.ID)
	if trip, ok := s.trips[stored.TripID]; ok {
		trip.ReleaseSeats(stored.Seats())
	}
	return true, nil
}

// GetReservation returns a copy of the reservation, or nil when missing
func (s *MemoryStore) GetReservation(_ context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	return copyReservation(res), nil
}

// ListReservationsByUser returns the user's reservations, newest first
func (s *MemoryStore) ListReservationsByUser(_ context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := []models.Reservation{}
	for _, res := range s.reservations {
		if res.UserID == userID {
			reservations = append(reservations, *copyReservation(res))
		}
	}
	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].ReservationDate.After(reservations[j].ReservationDate)
	})
	return reservations, nil
}

// CreateUser stores a user; emails are unique ignoring case
func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return models.ErrEmailTaken
		}
	}
	copied := *user
	copied.Email = strings.ToLower(user.Email)
	s.users[user.ID] = &copied
	return nil
}

// GetUserByEmail returns nil when no user has the email
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

// GetUserByID returns nil when the user does not exist
func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

// UpdateLastLogin stamps the user's last login time
func (s *MemoryStore) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		now := time.Now()
		user.LastLoginAt.Time, user.LastLoginAt.Valid = now, true
		user.UpdatedAt = now
	}
	return nil
}

// StoreRefreshToken keeps the token hash with its device details
func (s *MemoryStore) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, deviceType, ipAddress, userAgent string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := HashToken(token)
	s.refreshTokens[hash] = &models.RefreshToken{
		ID:         uuid.New(),
		UserID:     userID,
		TokenHash:  hash,
		DeviceType: models.NewNullString(deviceType),
		IPAddress:  models.NewNullString(ipAddress),
		UserAgent:  models.NewNullString(userAgent),
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	}
	return nil
}

// GetRefreshToken returns nil when the token is unknown
func (s *MemoryStore) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.refreshTokens[HashToken(token)]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

// RevokeToken revokes one refresh token
func (s *MemoryStore) RevokeToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.refreshTokens[HashToken(token)]
	if !ok || stored.Revoked {
		return models.ErrInvalidToken
	}
	revoke(stored)
	return nil
}

// RevokeAllUserTokens revokes every token of the user
func (s *MemoryStore) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.refreshTokens {
		if stored.UserID == userID && !stored.Revoked {
			revoke(stored)
		}
	}
	return nil
}

// UpdateLastUsed stamps the token's last use
func (s *MemoryStore) UpdateLastUsed(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.refreshTokens[HashToken(token)]; ok {
		stored.LastUsedAt.Time, stored.LastUsedAt.Valid = time.Now(), true
	}
	return nil
}

// CleanupExpiredTokens drops expired and revoked tokens
func (s *MemoryStore) CleanupExpiredTokens(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int64
	for hash, stored := range s.refreshTokens {
		if stored.Revoked || stored.ExpiresAt.Before(now) {
			delete(s.refreshTokens, hash)
			removed++
		}
	}
	return removed, nil
}

func revoke(token *models.RefreshToken) {
	token.Revoked = true
	token.RevokedAt.Time, token.RevokedAt.Valid = time.Now(), true
}

// copyReservation returns a copy that shares no seat numbers with res
func copyReservation(res *models.Reservation) *models.Reservation {
	copied := *res
	copied.SeatNumbers = append(res.SeatNumbers[:0:0], res.SeatNumbers...)
	return &copied
}
