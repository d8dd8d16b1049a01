// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime configuration for the engagement service.
type Config struct {
	Env      string // "development" | "production"
	LogLevel string

	HTTPPort string
	GRPCPort string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int32
	RedisURL      string // empty disables event publishing and rate limiting

	JWTSigningKey string
	JWTTTL        time.Duration

	// StrictCapacity rejects accepts once a listing has no remaining slots.
	StrictCapacity        bool
	CapacityAuditInterval time.Duration
	RateLimitPerMinute    int
}

// Load reads environment variables (and an optional .env file) and returns a
// validated Config.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HTTPPort:      getEnv("HTTP_PORT", "8083"),
		GRPCPort:      getEnv("GRPC_PORT", "9093"),
		StorageDriver: getEnv("STORAGE_DRIVER", DriverPostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StorageDriver)
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	var err error
	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StrictCapacity, err = getEnvBool("STRICT_CAPACITY", false); err != nil {
		return nil, err
	}
	if cfg.CapacityAuditInterval, err = getEnvDuration("CAPACITY_AUDIT_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CapacityAuditInterval < time.Minute {
		return nil, fmt.Errorf("CAPACITY_AUDIT_INTERVAL must be at least 1m, got %s", cfg.CapacityAuditInterval)
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 6h, got %q", key, s)
	}
	return v, nil
}
