// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/biz4a/aegis/revocation"
)

// Config holds every tunable of the license server. All fields come
// from AEGIS_* environment variables.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`

	Issuer       string        `envconfig:"ISSUER" default:"https://license.biz4a.com"`
	KeysPath     string        `envconfig:"KEYS_PATH"`
	VerifyLeeway time.Duration `envconfig:"VERIFY_LEEWAY" default:"60s"`

	RevocationPolicy   string `envconfig:"REVOCATION_POLICY" default:"fail-closed"`
	RevocationSyncCron string `envconfig:"REVOCATION_SYNC_CRON" default:"@every 1m"`

	ValidateRateLimit int           `envconfig:"VALIDATE_RATE_LIMIT" default:"120"`
	IssueRateLimit    int           `envconfig:"ISSUE_RATE_LIMIT" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads AEGIS_* variables and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("AEGIS", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks constraints envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: AEGIS_DATABASE_URL is required")
	}
	if _, err := revocation.ParsePolicy(c.RevocationPolicy); err != nil {
		return fmt.Errorf("config: AEGIS_REVOCATION_POLICY: %w", err)
	}
	if c.VerifyLeeway < 0 {
		return fmt.Errorf("config: AEGIS_VERIFY_LEEWAY must not be negative")
	}
	if c.ValidateRateLimit < 1 || c.IssueRateLimit < 1 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: AEGIS_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// IsProd reports whether the server runs with production hardening.
func (c *Config) IsProd() bool {
	return c.Env == "production" || c.Env == "prod"
}
