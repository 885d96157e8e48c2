package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Host     string `env:"HOST" envDefault:"127.0.0.1" validate:"required"`
	Port     string `env:"PORT" envDefault:"3000" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// SiteURL is where confirmation and reset links in backend emails point.
	SiteURL string `env:"SITE_URL" envDefault:"http://localhost:3000" validate:"required,url"`

	BackendURL       string        `env:"BACKEND_URL,required"      validate:"required,url"`
	BackendAnonKey   string        `env:"BACKEND_ANON_KEY,required" validate:"required"`
	BackendJWTSecret string        `env:"BACKEND_JWT_SECRET"`
	BackendJWKSURL   string        `env:"BACKEND_JWKS_URL"          validate:"omitempty,url"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s" validate:"min=1s"`

	// DatabaseURL switches the profile store from the data API to a direct
	// Postgres connection.
	DatabaseURL   string `env:"DATABASE_URL"`
	SessionDBPath string `env:"SESSION_DB_PATH" envDefault:"backup-desk.db" validate:"required"`

	RefreshSchedule string        `env:"REFRESH_SCHEDULE" envDefault:"@every 30s" validate:"required"`
	RefreshMargin   time.Duration `env:"REFRESH_MARGIN"   envDefault:"60s"`

	MetricsPort    string   `env:"METRICS_PORT" envDefault:"9090" validate:"omitempty,numeric"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM" validate:"required_with=ResendAPIKey"`
	AlertEmail   string `env:"ALERT_EMAIL" validate:"omitempty,email"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
