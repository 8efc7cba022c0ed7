package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
)

// TripHandler serves trip search and administration
type TripHandler struct {
	reservationService *services.ReservationService
	logger             *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(reservationService *services.ReservationService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		reservationService: reservationService,
		logger:             logger,
	}
}

type tripListItem struct {
	models.Trip
	AvailableSeats int `json:"available_seats"`
}

// SearchTrips handles GET /api/v1/trips?from=&to=
func (h *TripHandler) SearchTrips(c *gin.Context) {
	trips, err := h.reservationService.SearchTrips(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]tripListItem, len(trips))
	for i := range trips {
		available := trips[i].AvailableSeatsCount()
		trips[i].Seats = nil
		items[i] = tripListItem{Trip: trips[i], AvailableSeats: available}
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": items,
		"count": len(items),
	})
}

// GetTrip handles GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	trip, err := h.reservationService.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.TripDetailResponse{
		Trip:    trip,
		Summary: trip.Summary(),
		Layout:  models.BuildSeatLayout(trip.TotalSeats),
	})
}

// AddTrip handles POST /api/v1/admin/trips
func (h *TripHandler) AddTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	trip, err := h.reservationService.AddTrip(c.Request.Context(), middleware.SessionFromContext(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

// DeleteTrip handles DELETE /api/v1/admin/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.reservationService.DeleteTrip(c.Request.Context(), middleware.SessionFromContext(c), tripID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted"})
}
