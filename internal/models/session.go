package models

import "github.com/google/uuid"

// Session identifies the caller of an operation. A nil *Session means the
// caller is not authenticated.
type Session struct {
	UserID    uuid.UUID
	Email     string
	IsAdmin   bool
	IPAddress string
	UserAgent string
}

// Owns reports whether the reservation belongs to the session's user
func (s *Session) Owns(r *Reservation) bool {
	return s != nil && r != nil && r.UserID == s.UserID
}
