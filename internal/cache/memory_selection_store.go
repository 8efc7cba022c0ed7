package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// MemorySelectionStore keeps seat holds for a single server instance
type MemorySelectionStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]map[int]models.SelectionHold
	now   func() time.Time
}

// NewMemorySelectionStore creates an empty hold store
func NewMemorySelectionStore() *MemorySelectionStore {
	return &MemorySelectionStore{
		holds: make(map[uuid.UUID]map[int]models.SelectionHold),
		now:   time.Now,
	}
}

// ListHolds returns the live holds on a trip ordered by seat
func (s *MemorySelectionStore) ListHolds(_ context.Context, tripID uuid.UUID) ([]models.SelectionHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var holds []models.SelectionHold
	for _, hold := range s.holds[tripID] {
		if !hold.Expired(now) {
			holds = append(holds, hold)
		}
	}
	sort.Slice(holds, func(i, j int) bool { return holds[i].SeatNumber < holds[j].SeatNumber })
	return holds, nil
}

// PutHold claims a seat unless another user holds it
func (s *MemorySelectionStore) PutHold(_ context.Context, hold models.SelectionHold) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats, ok := s.holds[hold.TripID]
	if !ok {
		seats = make(map[int]models.SelectionHold)
		s.holds[hold.TripID] = seats
	}
	if existing, ok := seats[hold.SeatNumber]; ok && !existing.Expired(s.now()) && existing.UserID != hold.UserID {
		return false, nil
	}
	seats[hold.SeatNumber] = hold
	return true, nil
}

// ReleaseHolds drops the user's holds on the given seats, or all of them
func (s *MemorySelectionStore) ReleaseHolds(_ context.Context, tripID, userID uuid.UUID, seatNumbers []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := s.holds[tripID]
	if len(seatNumbers) == 0 {
		for n, hold := range seats {
			if hold.UserID == userID {
				delete(seats, n)
			}
		}
	}
	for _, n := range seatNumbers {
		if hold, ok := seats[n]; ok && hold.UserID == userID {
			delete(seats, n)
		}
	}
	if len(seats) == 0 {
		delete(s.holds, tripID)
	}
	return nil
}

// PurgeExpired removes holds that lapsed before now
func (s *MemorySelectionStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for tripID, seats := range s.holds {
		for n, hold := range seats {
			if hold.Expired(now) {
				delete(seats, n)
				purged++
			}
		}
		if len(seats) == 0 {
			delete(s.holds, tripID)
		}
	}
	return purged, nil
}
