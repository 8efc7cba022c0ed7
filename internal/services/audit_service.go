package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/database"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/utils"
)

// Audit actions
const (
	AuditActionRegister            = "register"
	AuditActionLogin               = "login"
	AuditActionLoginFailed         = "login_failed"
	AuditActionLogout              = "logout"
	AuditActionTokenRefresh        = "token_refresh"
	AuditActionReservationCreated  = "reservation_created"
	AuditActionReservationCanceled = "reservation_cancelled"
	AuditActionTripAdded           = "trip_added"
	AuditActionTripDeleted         = "trip_deleted"
)

// AuditService records security and booking events. Without a database it
// only writes them to the log. Failures never reach the caller.
type AuditService struct {
	db     database.DB
	logger *logrus.Logger
}

// NewAuditService creates a new audit service; db may be nil
func NewAuditService(db database.DB, logger *logrus.Logger) *AuditService {
	return &AuditService{
		db:     db,
		logger: logger,
	}
}

// AuditEvent represents a security event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID // nil before authentication
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

func sessionEvent(session *models.Session, action, entityType string, entityID uuid.UUID, details map[string]interface{}) AuditEvent {
	event := AuditEvent{
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		Details:    details,
	}
	if session != nil {
		userID := session.UserID
		event.UserID = &userID
		event.IPAddress = session.IPAddress
		event.UserAgent = session.UserAgent
		details["device_info"] = utils.ParseUserAgent(session.UserAgent)
	}
	return event
}

// LogRegistration logs a new account
func (s *AuditService) LogRegistration(ctx context.Context, user *models.User, ipAddress, userAgent string) {
	s.logEvent(ctx, AuditEvent{
		UserID:     &user.ID,
		Action:     AuditActionRegister,
		EntityType: "user",
		EntityID:   &user.ID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"email":       user.Email,
			"device_info": utils.ParseUserAgent(userAgent),
		},
	})
}

// LogLogin logs a login attempt; userID is nil when the email is unknown
func (s *AuditService) LogLogin(ctx context.Context, userID *uuid.UUID, email, ipAddress, userAgent string, success bool) {
	action := AuditActionLogin
	if !success {
		action = AuditActionLoginFailed
	}
	s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"email":       email,
			"success":     success,
			"device_info": utils.ParseUserAgent(userAgent),
		},
	})
}

// LogLogout logs a logout event
func (s *AuditService) LogLogout(ctx context.Context, session *models.Session, logoutAll bool) {
	s.logEvent(ctx, sessionEvent(session, AuditActionLogout, "user", session.UserID, map[string]interface{}{
		"logout_all": logoutAll,
	}))
}

// LogTokenRefresh logs an access token refresh
func (s *AuditService) LogTokenRefresh(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, success bool) {
	s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     AuditActionTokenRefresh,
		EntityType: "refresh_token",
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    map[string]interface{}{"success": success},
	})
}

// LogReservationCreated logs a committed reservation
func (s *AuditService) LogReservationCreated(ctx context.Context, session *models.Session, res *models.Reservation, gender models.Gender) {
	s.logEvent(ctx, sessionEvent(session, AuditActionReservationCreated, "reservation", res.ID, map[string]interface{}{
		"trip_id":      res.TripID,
		"seat_numbers": res.Seats(),
		"gender":       gender,
		"total_price":  res.TotalPrice,
	}))
}

// LogReservationCancelled logs a cancellation
func (s *AuditService) LogReservationCancelled(ctx context.Context, session *models.Session, res *models.Reservation) {
	s.logEvent(ctx, sessionEvent(session, AuditActionReservationCanceled, "reservation", res.ID, map[string]interface{}{
		"trip_id":      res.TripID,
		"seat_numbers": res.Seats(),
	}))
}

// LogTripAdded logs an admin adding a trip
func (s *AuditService) LogTripAdded(ctx context.Context, session *models.Session, trip *models.Trip) {
	s.logEvent(ctx, sessionEvent(session, AuditActionTripAdded, "trip", trip.ID, map[string]interface{}{
		"route":       trip.DepartureCity + " -> " + trip.ArrivalCity,
		"date":        trip.DepartureDate.Format(models.DateLayout),
		"time":        trip.DepartureTime,
		"total_seats": trip.TotalSeats,
	}))
}

// LogTripDeleted logs an admin deleting a trip
func (s *AuditService) LogTripDeleted(ctx context.Context, session *models.Session, tripID uuid.UUID) {
	s.logEvent(ctx, sessionEvent(session, AuditActionTripDeleted, "trip", tripID, map[string]interface{}{}))
}

// logEvent writes to the audit_logs table
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) {
	fields := logrus.Fields{
		"audit_action": event.Action,
		"entity_type":  event.EntityType,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.EntityID != nil {
		fields["entity_id"] = *event.EntityID
	}
	s.logger.WithFields(fields).Info("Audit event")

	if s.db == nil {
		return
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		s.logger.WithError(err).WithField("audit_action", event.Action).Warn("Failed to encode audit details")
		return
	}

	query := `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		string(details),
	)
	if err != nil {
		s.logger.WithError(err).WithField("audit_action", event.Action).Warn("Failed to write audit event")
	}
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
