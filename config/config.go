// Package config loads server configuration from an optional .env file and
// the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Config represents the server configuration.
type Config struct {
	Port          int
	StoreDriver   string
	DBPath        string
	TxMaxAttempts int
	LogLevel      string
	LogFormat     string // console or json
	CORSOrigins   []string
}

// Load reads the environment after loading envPath, or ./.env when no path
// is given. A missing default .env is not an error.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	attempts, err := parseIntEnv("TX_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid TX_MAX_ATTEMPTS: %w", err)
	}

	return &Config{
		Port:          port,
		StoreDriver:   getEnvOrDefault("STORE_DRIVER", DriverSQLite),
		DBPath:        getEnvOrDefault("DB_PATH", "ledger.db"),
		TxMaxAttempts: attempts,
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "console"),
		CORSOrigins:   splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverBolt:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for store driver %q", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", c.TxMaxAttempts)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
