package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL is only required for the
// postgres driver.
type Config struct {
	AppEnv string

	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Remote API
	APIBaseURL string
	APITimeout time.Duration

	// Queue storage
	StorageDriver string
	QueueKey      string
	SQLitePath    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Connectivity probe
	ProbeInterval time.Duration
	ProbePath     string

	// Drain triggers. An empty DrainSchedule disables the periodic trigger.
	DrainSchedule    string
	DrainMinInterval time.Duration

	// Outbound requests per second, per mutation kind. Zero means unlimited.
	OutboundRateLimit int
}

// Load reads a .env file when one exists, then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "production"),

		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		APIBaseURL: getEnv("API_BASE_URL", "https://api.costco-plus.com"),
		APITimeout: getDuration("API_TIMEOUT", 10*time.Second),

		StorageDriver: getEnv("STORAGE_DRIVER", DriverSQLite),
		QueueKey:      getEnv("QUEUE_KEY", "costco-plus-offline-queue"),
		SQLitePath:    getEnv("SQLITE_PATH", "offline-queue.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getInt("DB_MAX_CONNS", 5),
		DBMinConns:  getInt("DB_MIN_CONNS", 1),

		ProbeInterval: getDuration("PROBE_INTERVAL", 15*time.Second),
		ProbePath:     getEnv("PROBE_PATH", "/v1/warehouses/"),

		DrainSchedule:    lookupEnv("DRAIN_SCHEDULE", "@every 5m"),
		DrainMinInterval: getDuration("DRAIN_MIN_INTERVAL", 2*time.Second),

		OutboundRateLimit: getInt("OUTBOUND_RATE_LIMIT", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot start the server.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage driver"))
		}
		// pgxpool takes int32 pool sizes
		if c.DBMaxConns < 1 || c.DBMaxConns > math.MaxInt32 {
			errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be between 1 and %d, got %d", math.MaxInt32, c.DBMaxConns))
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			errs = append(errs, fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL must not be empty"))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, errors.New("PROBE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment selects the development logger.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// lookupEnv is getEnv that honours an explicitly empty value.
func lookupEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
