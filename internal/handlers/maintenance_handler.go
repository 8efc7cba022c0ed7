package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
)

// MaintenanceHandler lets admins run and inspect the cleanup jobs
type MaintenanceHandler struct {
	cronService *services.CronService
	logger      *logrus.Logger
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(cronService *services.CronService, logger *logrus.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		cronService: cronService,
		logger:      logger,
	}
}

// RunCleanup handles POST /api/v1/admin/maintenance/cleanup
func (h *MaintenanceHandler) RunCleanup(c *gin.Context) {
	result, err := h.cronService.RunCleanupNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/admin/maintenance/status
func (h *MaintenanceHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.cronService.GetJobStatus())
}
