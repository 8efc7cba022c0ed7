package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/pkg/jwt"
)

// Router holds every handler the API exposes
type Router struct {
	Auth        *AuthHandler
	Trips       *TripHandler
	Selection   *SelectionHandler
	Reservation *ReservationHandler
	Maintenance *MaintenanceHandler

	JWTService *jwt.Service
	Logger     *logrus.Logger
	Version    string
	// Ping checks the backing store; nil means there is nothing to check
	Ping func(ctx context.Context) error
}

// Register mounts /health and the /api/v1 routes on the engine
func (r *Router) Register(engine *gin.Engine) {
	engine.GET("/health", r.health)

	auth := middleware.AuthMiddleware(r.JWTService, r.Logger)

	v1 := engine.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", r.Auth.Register)
		authGroup.POST("/login", r.Auth.Login)
		authGroup.POST("/refresh", r.Auth.RefreshToken)
		authGroup.POST("/logout", auth, r.Auth.Logout)

		v1.GET("/user/profile", auth, r.Auth.GetProfile)

		trips := v1.Group("/trips")
		trips.GET("", r.Trips.SearchTrips)
		trips.GET("/:id", r.Trips.GetTrip)

		tripsAuth := trips.Group("/:id", auth)
		tripsAuth.GET("/selection", r.Selection.GetSelection)
		tripsAuth.POST("/selection", r.Selection.SelectSeat)
		tripsAuth.DELETE("/selection", r.Selection.DeselectSeats)
		tripsAuth.POST("/selection/checkout", r.Selection.Checkout)
		tripsAuth.POST("/reservations", r.Reservation.CreateReservation)

		reservations := v1.Group("/reservations", auth)
		reservations.GET("", r.Reservation.ListReservations)
		reservations.GET("/:id", r.Reservation.GetReservation)
		reservations.GET("/:id/ticket", r.Reservation.GetTicket)
		reservations.DELETE("/:id", r.Reservation.CancelReservation)

		admin := v1.Group("/admin", auth, middleware.RequireAdmin())
		admin.POST("/trips", r.Trips.AddTrip)
		admin.DELETE("/trips/:id", r.Trips.DeleteTrip)
		if r.Maintenance != nil {
			admin.POST("/maintenance/cleanup", r.Maintenance.RunCleanup)
			admin.GET("/maintenance/status", r.Maintenance.Status)
		}
	}
}

func (r *Router) health(c *gin.Context) {
	dbStatus := "healthy"
	if r.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}
	} else {
		dbStatus = "in-memory"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  dbStatus,
		"version":   r.Version,
		"timestamp": time.Now().Unix(),
	})
}
