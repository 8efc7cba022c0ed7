package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// ReservationService owns the reservation lifecycle and trip administration.
// Every operation takes the caller's session explicitly; mutations of one
// trip's seats are serialized through the TripLocker.
type ReservationService struct {
	trips             TripStore
	reservations      ReservationStore
	holds             SelectionStore
	locker            *TripLocker
	audit             *AuditService
	metrics           *metrics.Metrics
	logger            *logrus.Logger
	defaultTotalSeats int
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	trips TripStore,
	reservations ReservationStore,
	locker *TripLocker,
	audit *AuditService,
	m *metrics.Metrics,
	logger *logrus.Logger,
	defaultTotalSeats int,
) *ReservationService {
	if defaultTotalSeats <= 0 {
		defaultTotalSeats = models.DefaultTotalSeats
	}
	return &ReservationService{
		trips:             trips,
		reservations:      reservations,
		locker:            locker,
		audit:             audit,
		metrics:           m,
		logger:            logger,
		defaultTotalSeats: defaultTotalSeats,
	}
}

// UseSelectionStore makes bookings respect live seat holds when applying
// the gender rule
func (s *ReservationService) UseSelectionStore(holds SelectionStore) {
	s.holds = holds
}

// CreateReservation books seats on a trip for the session's user. Seats may
// be available or selected but not occupied, and must pass the gender
// adjacency rule against occupied seats and live holds. The reservation row is stored before the seats are
// committed as occupied.
func (s *ReservationService) CreateReservation(ctx context.Context, session *models.Session, tripID uuid.UUID, seatNumbers []int, gender models.Gender) (*models.Reservation, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}
	if err := models.ValidateSeatNumbers(seatNumbers); err != nil {
		return nil, err
	}
	if !gender.Valid() {
		return nil, fmt.Errorf("%w: unknown gender %q", models.ErrInvalidInput, gender)
	}

	unlock := s.locker.Lock(tripID)
	defer unlock()

	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}

	for _, n := range seatNumbers {
		seat := trip.Seat(n)
		if seat == nil {
			s.rejected("seat_unavailable")
			return nil, fmt.Errorf("%w: seat %d does not exist", models.ErrSeatUnavailable, n)
		}
		if seat.IsOccupied() {
			s.rejected("seat_unavailable")
			return nil, fmt.Errorf("%w: seat %d is occupied", models.ErrSeatUnavailable, n)
		}
	}

	if s.holds != nil {
		holds, err := s.holds.ListHolds(ctx, tripID)
		if err != nil {
			return nil, fmt.Errorf("failed to load holds: %w", err)
		}
		applyHolds(trip, holds)
	}

	if err := s.checkGenderRule(trip, seatNumbers, gender); err != nil {
		s.rejected("gender_conflict")
		return nil, err
	}

	reservation := models.NewReservation(session.UserID, trip, seatNumbers)
	if err := s.reservations.InsertReservation(ctx, reservation, gender); err != nil {
		if errors.Is(err, models.ErrSeatUnavailable) {
			s.rejected("seat_unavailable")
			return nil, err
		}
		return nil, fmt.Errorf("failed to store reservation: %w", err)
	}

	if reservation.Trip, err = s.trips.GetTrip(ctx, tripID); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("Failed to reload trip after booking")
	}

	s.metrics.ReservationsCreated.Inc()
	s.metrics.SeatsBooked.Add(float64(len(seatNumbers)))
	s.audit.LogReservationCreated(ctx, session, reservation, gender)
	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"user_id":        session.UserID,
		"trip_id":        tripID,
		"seats":          reservation.SeatNumbersString(),
		"total_price":    reservation.TotalPrice,
	}).Info("Reservation created")

	return reservation, nil
}

// checkGenderRule replays the booking through the trip's state machine on a
// copy: every requested seat is selected with the gender, then booked.
// Seats already selected are re-selected so the rule applies to them too.
func (s *ReservationService) checkGenderRule(trip *models.Trip, seatNumbers []int, gender models.Gender) error {
	draft := trip.Clone()
	draft.DeselectSeats(seatNumbers)
	for _, n := range seatNumbers {
		if err := draft.SelectSeatWithGender(n, gender); err != nil {
			return err
		}
	}
	return draft.BookSeats(seatNumbers)
}

// CancelReservation deletes the caller's own reservation and frees its seats
func (s *ReservationService) CancelReservation(ctx context.Context, session *models.Session, reservationID uuid.UUID) error {
	if session == nil {
		return models.ErrNotAuthenticated
	}

	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to load reservation: %w", err)
	}
	if reservation == nil {
		return models.ErrReservationNotFound
	}
	if !session.Owns(reservation) {
		return models.ErrForbidden
	}

	unlock := s.locker.Lock(reservation.TripID)
	defer unlock()

	deleted, err := s.reservations.DeleteReservation(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if !deleted {
		return models.ErrReservationNotFound
	}

	s.metrics.ReservationsCancelled.Inc()
	s.audit.LogReservationCancelled(ctx, session, reservation)
	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"user_id":        session.UserID,
		"trip_id":        reservation.TripID,
		"seats":          reservation.SeatNumbersString(),
	}).Info("Reservation cancelled")

	return nil
}

// AddTrip creates a trip with a fresh seat layout. Admin only.
func (s *ReservationService) AddTrip(ctx context.Context, session *models.Session, req models.CreateTripRequest) (*models.Trip, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	date, err := models.ParseDepartureDate(req.DepartureDate)
	if err != nil {
		return nil, err
	}
	totalSeats := req.TotalSeats
	if totalSeats == 0 {
		totalSeats = s.defaultTotalSeats
	}

	trip := models.NewTrip(req.DepartureCity, req.ArrivalCity, date, strings.TrimSpace(req.DepartureTime), req.Price, totalSeats)
	if err := trip.Validate(); err != nil {
		return nil, err
	}

	if err := s.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	s.audit.LogTripAdded(ctx, session, trip)
	s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"route":       trip.DepartureCity + " -> " + trip.ArrivalCity,
		"departure":   trip.DepartsAt(),
		"total_seats": trip.TotalSeats,
	}).Info("Trip added")

	return trip, nil
}

// DeleteTrip removes a trip with its seats and reservations. Admin only.
func (s *ReservationService) DeleteTrip(ctx context.Context, session *models.Session, tripID uuid.UUID) error {
	if err := requireAdmin(session); err != nil {
		return err
	}

	unlock := s.locker.Lock(tripID)
	defer unlock()

	deleted, err := s.trips.DeleteTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if !deleted {
		return models.ErrTripNotFound
	}

	s.audit.LogTripDeleted(ctx, session, tripID)
	s.logger.WithField("trip_id", tripID).Info("Trip deleted")
	return nil
}

// SearchTrips filters trips by case-insensitive substring on each city.
// Blank terms match everything; results are ordered by departure.
func (s *ReservationService) SearchTrips(ctx context.Context, departure, arrival string) ([]models.Trip, error) {
	trips, err := s.trips.SearchTrips(ctx, departure, arrival)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}
	models.SortTripsByDeparture(trips)
	return trips, nil
}

// ListTrips returns every trip ordered by departure
func (s *ReservationService) ListTrips(ctx context.Context) ([]models.Trip, error) {
	return s.SearchTrips(ctx, "", "")
}

// GetTrip returns a trip with its seats
func (s *ReservationService) GetTrip(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}
	return trip, nil
}

// ListReservations returns the caller's reservations, newest first, with trips attached
func (s *ReservationService) ListReservations(ctx context.Context, session *models.Session) ([]models.Reservation, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}

	reservations, err := s.reservations.ListReservationsByUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	trips := make(map[uuid.UUID]*models.Trip)
	for i := range reservations {
		tripID := reservations[i].TripID
		trip, ok := trips[tripID]
		if !ok {
			if trip, err = s.trips.GetTrip(ctx, tripID); err != nil {
				return nil, fmt.Errorf("failed to load trip: %w", err)
			}
			trips[tripID] = trip
		}
		reservations[i].Trip = trip
	}
	return reservations, nil
}

// GetReservation returns one of the caller's reservations with its trip
func (s *ReservationService) GetReservation(ctx context.Context, session *models.Session, reservationID uuid.UUID) (*models.Reservation, error) {
	if session == nil {
		return nil, models.ErrNotAuthenticated
	}

	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if reservation == nil {
		return nil, models.ErrReservationNotFound
	}
	if !session.Owns(reservation) {
		return nil, models.ErrForbidden
	}

	if reservation.Trip, err = s.trips.GetTrip(ctx, reservation.TripID); err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	return reservation, nil
}

func (s *ReservationService) rejected(reason string) {
	s.metrics.SelectionRejected.WithLabelValues(reason).Inc()
}

func requireAdmin(session *models.Session) error {
	if session == nil {
		return models.ErrNotAuthenticated
	}
	if !session.IsAdmin {
		return models.ErrForbidden
	}
	return nil
}
