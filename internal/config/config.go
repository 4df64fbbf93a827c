// internal/config/config.go

// Package config loads process configuration from LIBRARYDESK_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is shared by the HTTP server and the terminal binary.
type Config struct {
	DBDriver       string        `env:"LIBRARYDESK_DB_DRIVER"        envDefault:"sqlite3"`
	DatabaseURL    string        `env:"LIBRARYDESK_DATABASE_URL"     envDefault:"library.db"`
	LockTimeout    time.Duration `env:"LIBRARYDESK_LOCK_TIMEOUT"     envDefault:"5s"`
	LoanPeriodDays int           `env:"LIBRARYDESK_LOAN_PERIOD_DAYS" envDefault:"14"`

	HTTPAddr      string        `env:"LIBRARYDESK_HTTP_ADDR"      envDefault:":8080"`
	SessionSecret string        `env:"LIBRARYDESK_SESSION_SECRET"`
	SessionTTL    time.Duration `env:"LIBRARYDESK_SESSION_TTL"    envDefault:"12h"`

	OTLPEndpoint string `env:"LIBRARYDESK_OTLP_ENDPOINT"`
	LogLevel     string `env:"LIBRARYDESK_LOG_LEVEL"  envDefault:"info"`
	LogFormat    string `env:"LIBRARYDESK_LOG_FORMAT" envDefault:"text"`

	Argon2Time      uint32 `env:"LIBRARYDESK_ARGON2_TIME"       envDefault:"1"`
	Argon2MemoryKiB uint32 `env:"LIBRARYDESK_ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Threads   uint8  `env:"LIBRARYDESK_ARGON2_THREADS"    envDefault:"4"`

	AuthRate  float64 `env:"LIBRARYDESK_AUTH_RATE"  envDefault:"20"`
	AuthBurst int     `env:"LIBRARYDESK_AUTH_BURST" envDefault:"40"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive, got %s", c.LockTimeout)
	}
	if c.LoanPeriodDays < 1 {
		return fmt.Errorf("loan period must be at least one day, got %d", c.LoanPeriodDays)
	}
	if c.Argon2Time == 0 || c.Argon2MemoryKiB == 0 || c.Argon2Threads == 0 {
		return fmt.Errorf("argon2 parameters must be non-zero")
	}
	if c.AuthRate < 0 || (c.AuthRate > 0 && c.AuthBurst < 1) {
		return fmt.Errorf("auth rate must be >= 0 with a positive burst")
	}
	return nil
}

// RequireSessionSecret is checked by binaries that issue bearer tokens.
func (c Config) RequireSessionSecret() error {
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("LIBRARYDESK_SESSION_SECRET must be at least 32 bytes")
	}
	return nil
}
