// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port string `env:"PORT" envDefault:"5005"`

	// EventPrefix is prepended to every protocol event name except the
	// transport's own connect and disconnect.
	EventPrefix string `env:"EVENT_PREFIX"`

	SessionSecret       string        `env:"SESSION_SECRET" envDefault:"change-me-in-production"` // #nosec G101 -- intentional dev default
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"wp_session"`
	SessionDuration     time.Duration `env:"SESSION_DURATION" envDefault:"720h"`
	SessionSecureCookie bool          `env:"SESSION_SECURE_COOKIE" envDefault:"false"`

	RateLimitPerMinute int     `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	MessagesPerSecond  float64 `env:"MESSAGES_PER_SECOND" envDefault:"50"`
	MessageBurst       int     `env:"MESSAGE_BURST" envDefault:"100"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE" envDefault:"256"`
	MaxMessageBytes int64         `env:"MAX_MESSAGE_BYTES" envDefault:"65536"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"25s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5005,http://localhost:3000"`
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PingInterval <= 0 {
		return nil, fmt.Errorf("PING_INTERVAL must be positive, got %s", cfg.PingInterval)
	}
	return &cfg, nil
}
