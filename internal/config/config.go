package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Security    SecurityConfig
	Redis       RedisConfig
	Seating     SeatingConfig
	Maintenance MaintenanceConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string // postgres or memory
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	RunMigrations      bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	EnableAuditLog   bool
	LoginRateLimit   bool
}

// RedisConfig configures the shared selection hold store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SeatingConfig controls trip creation and seat selection
type SeatingConfig struct {
	DefaultTotalSeats int
	SelectionTTL      time.Duration
	SelectionStore    string // memory or redis
}

// MaintenanceConfig controls the scheduled cleanup jobs
type MaintenanceConfig struct {
	Enabled           bool
	TripCleanupSpec   string
	HoldPurgeSpec     string
	TripRetentionDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			RunMigrations:      getEnvAsBool("DATABASE_RUN_MIGRATIONS", true),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
			LoginRateLimit:   getEnvAsBool("ENABLE_LOGIN_RATE_LIMIT", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Seating: SeatingConfig{
			DefaultTotalSeats: getEnvAsInt("DEFAULT_TOTAL_SEATS", 45),
			SelectionTTL:      time.Duration(getEnvAsInt("SELECTION_TTL_SECONDS", 600)) * time.Second,
			SelectionStore:    strings.ToLower(getEnv("SELECTION_STORE", "memory")),
		},
		Maintenance: MaintenanceConfig{
			Enabled:           getEnvAsBool("MAINTENANCE_ENABLED", true),
			TripCleanupSpec:   getEnv("TRIP_CLEANUP_SCHEDULE", "0 0 4 * * *"),
			HoldPurgeSpec:     getEnv("HOLD_PURGE_SCHEDULE", "0 */1 * * * *"),
			TripRetentionDays: getEnvAsInt("TRIP_RETENTION_DAYS", 30),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %s (must be 'postgres' or 'memory')", c.Database.Driver)
	}

	if c.IsProduction() {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		if c.JWT.RefreshSecret == "" {
			return fmt.Errorf("JWT_REFRESH_SECRET is required")
		}
	}

	if c.Seating.DefaultTotalSeats <= 0 {
		return fmt.Errorf("DEFAULT_TOTAL_SEATS must be positive")
	}

	if c.Seating.SelectionTTL <= 0 {
		return fmt.Errorf("SELECTION_TTL_SECONDS must be positive")
	}

	if c.Seating.SelectionStore != "memory" && c.Seating.SelectionStore != "redis" {
		return fmt.Errorf("invalid SELECTION_STORE: %s (must be 'memory' or 'redis')", c.Seating.SelectionStore)
	}

	if c.Maintenance.TripRetentionDays < 0 {
		return fmt.Errorf("TRIP_RETENTION_DAYS cannot be negative")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
