package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// TicketService renders e-tickets for reservations
type TicketService struct {
	reservations *ReservationService
	now          func() time.Time
}

// NewTicketService creates a new ticket service
func NewTicketService(reservations *ReservationService) *TicketService {
	return &TicketService{reservations: reservations, now: time.Now}
}

// Ticket loads one of the session's reservations and renders it
func (s *TicketService) Ticket(ctx context.Context, session *models.Session, reservationID uuid.UUID) ([]byte, error) {
	reservation, err := s.reservations.GetReservation(ctx, session, reservationID)
	if err != nil {
		return nil, err
	}
	return s.RenderTicket(reservation)
}

// RenderTicket renders an A4 PDF with the reservation summary
func (s *TicketService) RenderTicket(reservation *models.Reservation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range strings.Split(reservation.Summary(), "\n") {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Issued %s. Present this ticket when boarding.", s.now().Format("2006-01-02 15:04")), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
