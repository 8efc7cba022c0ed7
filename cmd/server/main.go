package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/cache"
	"github.com/smarttransit/seat-reservation-backend/internal/config"
	"github.com/smarttransit/seat-reservation-backend/internal/database"
	"github.com/smarttransit/seat-reservation-backend/internal/handlers"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
	"github.com/smarttransit/seat-reservation-backend/internal/middleware"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
	"github.com/smarttransit/seat-reservation-backend/internal/utils"
	"github.com/smarttransit/seat-reservation-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// stores bundles the persistence backends the services depend on
type stores struct {
	trips        services.TripStore
	reservations services.ReservationStore
	users        services.UserStore
	tokens       services.RefreshTokenStore
	db           database.DB
	ping         func(ctx context.Context) error
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting seat reservation backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	st, closeStore, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	holds, closeHolds, err := openSelectionStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open selection store: %v", err)
	}
	defer closeHolds()

	if cfg.JWT.Secret == "" || cfg.JWT.RefreshSecret == "" {
		access, refresh, err := utils.GenerateJWTSecrets()
		if err != nil {
			logger.Fatalf("Failed to generate JWT secrets: %v", err)
		}
		cfg.JWT.Secret, cfg.JWT.RefreshSecret = access, refresh
		logger.Warn("JWT secrets not configured, generated ephemeral ones; tokens will not survive a restart")
	}

	m := metrics.New()
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	var auditDB database.DB
	if cfg.Security.EnableAuditLog {
		auditDB = st.db
	}
	auditService := services.NewAuditService(auditDB, logger)

	locker := services.NewTripLocker()
	reservationService := services.NewReservationService(
		st.trips,
		st.reservations,
		locker,
		auditService,
		m,
		logger,
		cfg.Seating.DefaultTotalSeats,
	)
	reservationService.UseSelectionStore(holds)
	selectionService := services.NewSelectionService(
		st.trips,
		holds,
		reservationService,
		locker,
		m,
		logger,
		cfg.Seating.SelectionTTL,
	)
	authService := services.NewAuthService(st.users, st.tokens, jwtService, auditService, logger, cfg.Security.BcryptCost)
	if cfg.Security.LoginRateLimit {
		authService.UseRateLimiter(services.NewRateLimitService(services.DefaultRateLimitConfig()))
	}
	ticketService := services.NewTicketService(reservationService)
	cronService := services.NewCronService(cfg.Maintenance, st.trips, selectionService, authService, auditService, m, logger)
	logger.Info("Services initialized")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger, m, cfg.Security.EnableRequestLog))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := &handlers.Router{
		Auth:        handlers.NewAuthHandler(authService, logger),
		Trips:       handlers.NewTripHandler(reservationService, logger),
		Selection:   handlers.NewSelectionHandler(selectionService, logger),
		Reservation: handlers.NewReservationHandler(reservationService, ticketService, logger),
		Maintenance: handlers.NewMaintenanceHandler(cronService, logger),
		JWTService:  jwtService,
		Logger:      logger,
		Version:     version,
		Ping:        st.ping,
	}
	api.Register(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	if cfg.Maintenance.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start maintenance jobs: %v", err)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func openStores(cfg *config.Config, logger *logrus.Logger) (*stores, func(), error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := database.NewMemoryStore()
		return &stores{trips: mem, reservations: mem, users: mem, tokens: mem}, func() {}, nil
	}

	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}

	if cfg.Database.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			closeDB()
			return nil, nil, err
		}
	}

	return &stores{
		trips:        database.NewTripRepository(db),
		reservations: database.NewReservationRepository(db),
		users:        database.NewUserRepository(db),
		tokens:       database.NewRefreshTokenRepository(db),
		db:           db,
		ping:         db.PingContext,
	}, closeDB, nil
}

func openSelectionStore(cfg *config.Config, logger *logrus.Logger) (services.SelectionStore, func(), error) {
	if cfg.Seating.SelectionStore != "redis" {
		return cache.NewMemorySelectionStore(), func() {}, nil
	}

	client, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("addr", cfg.Redis.Addr).Info("Seat selection holds stored in Redis")
	return cache.NewRedisSelectionStore(client), func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}, nil
}
