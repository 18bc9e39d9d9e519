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

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Port     string
	LogMode  string
	Location *time.Location

	StoreDriver  string
	DatabaseURL  string
	SQLitePath   string
	QueryTimeout time.Duration

	CatalogPath       string
	StreakHorizonDays int

	ClerkSecretKey string
	MetricsUser    string
	MetricsPass    string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           str("PORT", "3333"),
		LogMode:        str("LOG_MODE", "development"),
		StoreDriver:    strings.ToLower(str("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     str("SQLITE_PATH", "health.db"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		ClerkSecretKey: os.Getenv("CLERK_SECRET_KEY"),
		MetricsUser:    os.Getenv("METRICS_USER"),
		MetricsPass:    os.Getenv("METRICS_PASS"),
	}

	var err error
	if cfg.QueryTimeout, err = duration("STORE_QUERY_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.StreakHorizonDays, err = integer("STREAK_HORIZON_DAYS", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = float("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = integer("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}

	// The zone name is also handed to Postgres, which has no "Local".
	tz := str("TIMEZONE", "UTC")
	if tz == "Local" {
		return nil, fmt.Errorf("invalid TIMEZONE: use an IANA zone name instead of %q", tz)
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.StreakHorizonDays < 1 {
		return nil, fmt.Errorf("STREAK_HORIZON_DAYS must be positive, got %d", cfg.StreakHorizonDays)
	}

	return cfg, nil
}

func str(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func integer(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return i, nil
}

func float(name string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}

func duration(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
