package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/config"
	"github.com/smarttransit/seat-reservation-backend/internal/database"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
	"golang.org/x/crypto/bcrypt"
)

type demoUser struct {
	email    string
	password string
	fullName string
	phone    string
	isAdmin  bool
}

type demoTrip struct {
	from, to  string
	dayOffset int
	at        string
	price     float64
}

type demoBooking struct {
	trip   int
	user   int
	seats  []int
	gender models.Gender
}

var (
	demoUsers = []demoUser{
		{"admin@sorareservation.com", "admin123", "Admin User", "555-0001", true},
		{"user1@example.com", "user123", "John Doe", "555-1001", false},
		{"user2@example.com", "user123", "Jane Smith", "555-1002", false},
	}

	demoTrips = []demoTrip{
		{"Istanbul", "Ankara", 0, "10:00", 250},
		{"Ankara", "Izmir", 0, "14:30", 300},
		{"Istanbul", "Antalya", 1, "08:00", 350},
		{"Izmir", "Ankara", 1, "16:00", 280},
		{"Ankara", "Istanbul", 2, "12:00", 250},
	}

	demoBookings = []demoBooking{
		{0, 1, []int{1, 2}, models.GenderMale},
		{0, 1, []int{4, 5}, models.GenderMale},
		{0, 1, []int{7, 8}, models.GenderMale},
		{0, 2, []int{3, 6, 9}, models.GenderFemale},
		{0, 2, []int{12, 13, 15}, models.GenderFemale},
		{0, 1, []int{10, 11}, models.GenderMale},
		{1, 1, []int{1, 2, 4, 5, 6}, models.GenderMale},
		{1, 2, []int{7, 8, 9, 10, 11}, models.GenderFemale},
		{1, 1, []int{20}, models.GenderMale},
		{2, 1, []int{1, 2, 4, 5}, models.GenderMale},
		{2, 2, []int{3}, models.GenderFemale},
		{3, 2, []int{6, 7, 8, 9}, models.GenderFemale},
	}
)

func main() {
	var dbURLFlag string
	var reset bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&reset, "reset", false, "truncate all tables before seeding")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.RunMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	if reset {
		if _, err := db.ExecContext(ctx, `TRUNCATE TABLE audit_logs, reservations, trip_seats, trips, refresh_tokens, users RESTART IDENTITY CASCADE`); err != nil {
			logger.Fatalf("Failed to truncate tables: %v", err)
		}
		logger.Info("All tables truncated")
	}

	users := database.NewUserRepository(db)
	existing, err := users.GetUserByEmail(ctx, demoUsers[0].email)
	if err != nil {
		logger.Fatalf("Failed to check for existing data: %v", err)
	}
	if existing != nil {
		logger.Info("Demo data already present, nothing to do (use -reset to start over)")
		return
	}

	reservations := services.NewReservationService(
		database.NewTripRepository(db),
		database.NewReservationRepository(db),
		services.NewTripLocker(),
		services.NewAuditService(db, logger),
		metrics.New(),
		logger,
		models.DefaultTotalSeats,
	)

	if err := seed(ctx, users, reservations, time.Now()); err != nil {
		logger.Fatalf("Seeding failed: %v", err)
	}
	logger.Info("Demo data seeded")
}

func seed(ctx context.Context, users services.UserStore, reservations *services.ReservationService, now time.Time) error {
	sessions := make([]*models.Session, len(demoUsers))
	for i, u := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.email, err)
		}
		user := &models.User{
			ID:           uuid.New(),
			Email:        u.email,
			PasswordHash: string(hash),
			FullName:     u.fullName,
			Phone:        u.phone,
			IsAdmin:      u.isAdmin,
		}
		if err := users.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.email, err)
		}
		sessions[i] = &models.Session{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}
	}

	admin := sessions[0]
	tripIDs := make([]uuid.UUID, len(demoTrips))
	for i, t := range demoTrips {
		trip, err := reservations.AddTrip(ctx, admin, models.CreateTripRequest{
			DepartureCity: t.from,
			ArrivalCity:   t.to,
			DepartureDate: now.AddDate(0, 0, t.dayOffset).Format(models.DateLayout),
			DepartureTime: t.at,
			Price:         t.price,
		})
		if err != nil {
			return fmt.Errorf("failed to add trip %s -> %s: %w", t.from, t.to, err)
		}
		tripIDs[i] = trip.ID
	}

	for _, b := range demoBookings {
		if _, err := reservations.CreateReservation(ctx, sessions[b.user], tripIDs[b.trip], b.seats, b.gender); err != nil {
			return fmt.Errorf("failed to book seats %v on trip %d: %w", b.seats, b.trip+1, err)
		}
	}
	return nil
}
