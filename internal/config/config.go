// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	// Server
	Port     int
	Env      string // development, staging, production
	LogLevel string // debug, info, warn, error

	// Database (empty means in-memory stores)
	DatabaseURL string

	// Upstream parish-management API
	UpstreamURL     string
	UpstreamTimeout time.Duration

	// Checkout
	CheckoutKeyID    string
	CheckoutColor    string
	LoginURL         string
	RedirectDelay    time.Duration
	CheckoutMerchant string

	// Webhook notifications (optional)
	WebhookURL    string
	WebhookSecret string

	// Sessions
	SessionTTL time.Duration

	// Rate limiting
	RateLimitRPM int

	// CORS
	AllowedOrigins []string

	// Tracing
	OTLPEndpoint string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvInt("PORT", 8080),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		UpstreamURL:      getEnv("UPSTREAM_URL", ""),
		UpstreamTimeout:  getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		CheckoutKeyID:    getEnv("CHECKOUT_KEY_ID", ""),
		CheckoutColor:    getEnv("CHECKOUT_COLOR", "#4f6aed"),
		LoginURL:         getEnv("LOGIN_URL", "/login"),
		RedirectDelay:    getEnvDuration("REDIRECT_DELAY", 2*time.Second),
		CheckoutMerchant: getEnv("CHECKOUT_MERCHANT", "Parish Management System"),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		WebhookSecret:    getEnv("WEBHOOK_SECRET", ""),
		SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
		RateLimitRPM:     getEnvInt("RATE_LIMIT_RPM", 120),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
	}

	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}

	if c.UpstreamURL == "" {
		return fmt.Errorf("config: UPSTREAM_URL is required")
	}

	if c.Env == "production" {
		if c.CheckoutKeyID == "" {
			return fmt.Errorf("config: CHECKOUT_KEY_ID is required in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required in production")
		}
		if c.WebhookURL != "" && c.WebhookSecret == "" {
			return fmt.Errorf("config: WEBHOOK_SECRET is required when WEBHOOK_URL is set")
		}
	}

	if c.SessionTTL < time.Minute {
		return fmt.Errorf("config: SESSION_TTL must be at least 1m, got %s", c.SessionTTL)
	}

	return nil
}

// ---------- env helpers ----------

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
