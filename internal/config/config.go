package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=bakery port=5432 sslmode=disable"
	defaultSQLiteDSN   = "file:bakery.db?_foreign_keys=on"
)

type Config struct {
	HTTPPort    string
	DBDriver    string
	DatabaseDSN string
	CORSOrigins string

	// JWTSecret signs operator tokens. AuthRequired rejects anonymous writes.
	JWTSecret    string
	AuthRequired bool

	RedisURL        string
	BarcodeCacheTTL time.Duration

	LogMode  string
	LogLevel string
	LogFile  string

	SeedSampleData bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseDSN:     getEnv("DATABASE_DSN", ""),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AuthRequired:    getEnvBool("AUTH_REQUIRED", false),
		RedisURL:        getEnv("REDIS_URL", ""),
		BarcodeCacheTTL: getEnvDuration("BARCODE_CACHE_TTL", 5*time.Minute),
		LogMode:         getEnv("LOG_MODE", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		SeedSampleData:  getEnvBool("SEED_SAMPLE_DATA", false),
	}

	if cfg.DatabaseDSN == "" {
		switch cfg.DBDriver {
		case DriverSQLite:
			cfg.DatabaseDSN = defaultSQLiteDSN
		default:
			cfg.DatabaseDSN = defaultPostgresDSN
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", c.DBDriver, DriverPostgres, DriverSQLite)
	}
	if strings.TrimSpace(c.HTTPPort) == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	if c.AuthRequired && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_REQUIRED is enabled")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

// AuthEnabled reports whether operator accounts can be used at all.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
