package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
)

// ReservationHandler serves booking, listing, tickets and cancellation
type ReservationHandler struct {
	reservationService *services.ReservationService
	ticketService      *services.TicketService
	logger             *logrus.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(
	reservationService *services.ReservationService,
	ticketService *services.TicketService,
	logger *logrus.Logger,
) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
		ticketService:      ticketService,
		logger:             logger,
	}
}

type reservationResponse struct {
	*models.Reservation
	Summary string `json:"summary"`
}

func newReservationResponse(res *models.Reservation) reservationResponse {
	return reservationResponse{Reservation: res, Summary: res.Summary()}
}

// CreateReservation handles POST /api/v1/trips/:id/reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	gender, err := models.ParseGender(req.Gender)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	reservation, err := h.reservationService.CreateReservation(c.Request.Context(), middleware.SessionFromContext(c), tripID, req.SeatNumbers, gender)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, newReservationResponse(reservation))
}

// ListReservations handles GET /api/v1/reservations
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	reservations, err := h.reservationService.ListReservations(c.Request.Context(), middleware.SessionFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]reservationResponse, len(reservations))
	for i := range reservations {
		if reservations[i].Trip != nil {
			reservations[i].Trip.Seats = nil
		}
		items[i] = newReservationResponse(&reservations[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": items,
		"count":        len(items),
	})
}

// GetReservation handles GET /api/v1/reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.GetReservation(c.Request.Context(), middleware.SessionFromContext(c), reservationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newReservationResponse(reservation))
}

// GetTicket handles GET /api/v1/reservations/:id/ticket
func (h *ReservationHandler) GetTicket(c *gin.Context) {
	reservationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	pdf, err := h.ticketService.Ticket(c.Request.Context(), middleware.SessionFromContext(c), reservationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="ticket-%s.pdf"`, reservationID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// CancelReservation handles DELETE /api/v1/reservations/:id
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	reservationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.reservationService.CancelReservation(c.Request.Context(), middleware.SessionFromContext(c), reservationID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled"})
}
