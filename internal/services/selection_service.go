package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// SelectionService manages in-progress seat selections. Selections are
// holds in a SelectionStore with a TTL and never touch persisted seats;
// every new hold is checked against occupied seats and every user's live
// holds through Trip.SelectSeatWithGender.
type SelectionService struct {
	trips        TripStore
	holds        SelectionStore
	reservations *ReservationService
	locker       *TripLocker
	metrics      *metrics.Metrics
	logger       *logrus.Logger
	ttl          time.Duration
	now          func() time.Time
}

// NewSelectionService creates a new SelectionService
func NewSelectionService(
	trips TripStore,
	holds SelectionStore,
	reservations *ReservationService,
	locker *TripLocker,
	m *metrics.Metrics,
	logger *logrus.Logger,
	ttl time.Duration,
) *SelectionService {
	return &SelectionService{
		trips:        trips,
		holds:        holds,
		reservations: reservations,
		locker:       locker,
		metrics:      m,
		logger:       logger,
		ttl:          ttl,
		now:          time.Now,
	}
}

// View returns the trip as the session sees it
func (s *SelectionService) View(ctx context.Context, session *models.Session, tripID uuid.UUID) (*models.SelectionView, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}

	trip, holds, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return buildView(trip, holds, session.UserID), nil
}

// SelectSeat holds a seat for the session. All of a session's holds on a
// trip share one gender; switching gender requires clearing first.
func (s *SelectionService) SelectSeat(ctx context.Context, session *models.Session, tripID uuid.UUID, seatNumber int, gender models.Gender) (*models.SelectionView, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}
	if !gender.Valid() {
		return nil, fmt.Errorf("%w: unknown gender %q", models.ErrInvalidInput, gender)
	}

	unlock := s.locker.Lock(tripID)
	defer unlock()

	trip, holds, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	for _, hold := range holds {
		if hold.UserID != session.UserID {
			continue
		}
		if hold.SeatNumber == seatNumber && hold.Gender == gender {
			// already held: extend it
			return s.put(ctx, session, trip, holds, seatNumber, gender)
		}
		if hold.Gender != gender {
			return nil, fmt.Errorf("%w: selection on this trip is for %s passengers; clear it to switch", models.ErrInvalidInput, hold.Gender)
		}
	}

	if err := trip.SelectSeatWithGender(seatNumber, gender); err != nil {
		reason := "seat_unavailable"
		if errors.Is(err, models.ErrGenderConflict) {
			reason = "gender_conflict"
		}
		s.metrics.SelectionRejected.WithLabelValues(reason).Inc()
		return nil, err
	}

	return s.put(ctx, session, trip, holds, seatNumber, gender)
}

func (s *SelectionService) put(ctx context.Context, session *models.Session, trip *models.Trip, holds []models.SelectionHold, seatNumber int, gender models.Gender) (*models.SelectionView, error) {
	hold := models.SelectionHold{
		TripID:     trip.ID,
		SeatNumber: seatNumber,
		Gender:     gender,
		UserID:     session.UserID,
		ExpiresAt:  s.now().Add(s.ttl),
	}
	claimed, err := s.holds.PutHold(ctx, hold)
	if err != nil {
		return nil, fmt.Errorf("failed to hold seat: %w", err)
	}
	if !claimed {
		s.metrics.SelectionRejected.WithLabelValues("seat_unavailable").Inc()
		return nil, fmt.Errorf("%w: seat %d is held by another passenger", models.ErrSeatUnavailable, seatNumber)
	}

	updated := holds[:0:0]
	for _, h := range holds {
		if h.SeatNumber != seatNumber {
			updated = append(updated, h)
		}
	}
	updated = append(updated, hold)

	s.logger.WithFields(logrus.Fields{
		"trip_id": trip.ID,
		"user_id": session.UserID,
		"seat":    seatNumber,
		"gender":  gender,
	}).Debug("Seat selected")

	return buildView(trip, updated, session.UserID), nil
}

// DeselectSeats drops the session's holds on the given seats. Seats the
// session does not hold are ignored.
func (s *SelectionService) DeselectSeats(ctx context.Context, session *models.Session, tripID uuid.UUID, seatNumbers []int) (*models.SelectionView, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}
	if len(seatNumbers) == 0 {
		return s.ClearSelection(ctx, session, tripID)
	}
	return s.release(ctx, session, tripID, seatNumbers)
}

// ClearSelection drops every hold of the session on the trip
func (s *SelectionService) ClearSelection(ctx context.Context, session *models.Session, tripID uuid.UUID) (*models.SelectionView, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}
	return s.release(ctx, session, tripID, nil)
}

func (s *SelectionService) release(ctx context.Context, session *models.Session, tripID uuid.UUID, seatNumbers []int) (*models.SelectionView, error) {
	unlock := s.locker.Lock(tripID)
	defer unlock()

	if err := s.holds.ReleaseHolds(ctx, tripID, session.UserID, seatNumbers); err != nil {
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}

	trip, holds, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return buildView(trip, holds, session.UserID), nil
}

// Checkout books every seat the session still holds on the trip and clears
// the holds. Holds on seats booked by someone else meanwhile are skipped.
func (s *SelectionService) Checkout(ctx context.Context, session *models.Session, tripID uuid.UUID) (*models.Reservation, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}

	_, holds, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var seats []int
	var gender models.Gender
	for _, hold := range holds {
		if hold.UserID == session.UserID {
			seats = append(seats, hold.SeatNumber)
			gender = hold.Gender
		}
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", models.ErrInvalidInput)
	}

	reservation, err := s.reservations.CreateReservation(ctx, session, tripID, seats, gender)
	if err != nil {
		return nil, err
	}

	if err := s.holds.ReleaseHolds(ctx, tripID, session.UserID, seats); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Failed to clear selection after checkout")
	}
	return reservation, nil
}

// PurgeExpiredHolds removes lapsed holds from the store
func (s *SelectionService) PurgeExpiredHolds(ctx context.Context) (int, error) {
	purged, err := s.holds.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge holds: %w", err)
	}
	s.metrics.HoldsPurged.Add(float64(purged))
	return purged, nil
}

// load returns the persisted trip with every live hold applied as a selected seat
func (s *SelectionService) load(ctx context.Context, tripID uuid.UUID) (*models.Trip, []models.SelectionHold, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, nil, models.ErrTripNotFound
	}

	holds, err := s.holds.ListHolds(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load holds: %w", err)
	}

	return trip, applyHolds(trip, holds), nil
}

// applyHolds marks each held seat selected with the hold's gender and returns
// the holds that still apply
func applyHolds(trip *models.Trip, holds []models.SelectionHold) []models.SelectionHold {
	live := holds[:0:0]
	for _, hold := range holds {
		seat := trip.Seat(hold.SeatNumber)
		if seat == nil || !seat.IsAvailable() {
			// booked since it was held
			continue
		}
		seat.Status = models.SeatStatusSelected
		seat.Gender = hold.Gender.Ptr()
		live = append(live, hold)
	}
	return live
}

func buildView(trip *models.Trip, holds []models.SelectionHold, userID uuid.UUID) *models.SelectionView {
	for _, hold := range holds {
		if seat := trip.Seat(hold.SeatNumber); seat != nil && seat.IsAvailable() {
			seat.Status = models.SeatStatusSelected
			seat.Gender = hold.Gender.Ptr()
		}
	}

	view := &models.SelectionView{Trip: trip, MySeats: []int{}}
	for _, hold := range holds {
		if hold.UserID != userID {
			continue
		}
		view.MySeats = append(view.MySeats, hold.SeatNumber)
		view.MyGender = hold.Gender.Ptr()
		expires := hold.ExpiresAt
		if view.HoldExpires == nil || expires.Before(*view.HoldExpires) {
			view.HoldExpires = &expires
		}
	}
	view.Summary = trip.Summary()
	view.TotalPrice = trip.Price * float64(len(view.MySeats))
	return view
}
