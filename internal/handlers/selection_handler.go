package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
)

// SelectionHandler serves a session's in-progress seat selection on a trip
type SelectionHandler struct {
	selectionService *services.SelectionService
	logger           *logrus.Logger
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(selectionService *services.SelectionService, logger *logrus.Logger) *SelectionHandler {
	return &SelectionHandler{
		selectionService: selectionService,
		logger:           logger,
	}
}

// GetSelection handles GET /api/v1/trips/:id/selection
func (h *SelectionHandler) GetSelection(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.selectionService.View(c.Request.Context(), middleware.SessionFromContext(c), tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SelectSeat handles POST /api/v1/trips/:id/selection
func (h *SelectionHandler) SelectSeat(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.SelectSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	gender, err := models.ParseGender(req.Gender)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.selectionService.SelectSeat(c.Request.Context(), middleware.SessionFromContext(c), tripID, req.SeatNumber, gender)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeselectSeats handles DELETE /api/v1/trips/:id/selection. An empty body
// or seat list clears the whole selection.
func (h *SelectionHandler) DeselectSeats(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.DeselectSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	view, err := h.selectionService.DeselectSeats(c.Request.Context(), middleware.SessionFromContext(c), tripID, req.SeatNumbers)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Checkout handles POST /api/v1/trips/:id/selection/checkout
func (h *SelectionHandler) Checkout(c *gin.Context) {
	tripID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.selectionService.Checkout(c.Request.Context(), middleware.SessionFromContext(c), tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}
