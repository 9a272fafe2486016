package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	// Tenant resolution.
	OrgHeader  string
	RootDomain string
	DefaultOrg string

	// Pricing defaults; organizations may override the rate per order scope.
	DefaultMvaRate float64
	Currency       string

	// Payments.
	StripeSecretKey     string
	StripeWebhookSecret string

	// Email.
	EmailEnabled bool
	EmailFrom    string

	AccessTokenTTL  time.Duration
	CheckoutIdemTTL time.Duration
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:         k.String("DATABASE_URL"),
		RedisURL:            k.String("REDIS_URL"),
		JWTSecret:           k.String("JWT_SECRET"),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		OrgHeader:           valueOrDefault(k.String("ORG_HEADER"), "X-Org-ID"),
		RootDomain:          strings.TrimSpace(k.String("ROOT_DOMAIN")),
		DefaultOrg:          strings.TrimSpace(k.String("DEFAULT_ORG")),
		DefaultMvaRate:      parseFloat(k.String("DEFAULT_MVA_RATE"), 25),
		Currency:            valueOrDefault(k.String("CURRENCY"), "NOK"),
		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		EmailEnabled:        parseBool(k.String("EMAIL_ENABLED")),
		EmailFrom:           valueOrDefault(k.String("EMAIL_FROM"), "ingen-svar@reginor.no"),
		AccessTokenTTL:      parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		CheckoutIdemTTL:     parseDuration(k.String("CHECKOUT_IDEM_TTL"), "24h"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.DefaultMvaRate < 0 || cfg.DefaultMvaRate > 100 {
		return nil, fmt.Errorf("DEFAULT_MVA_RATE %v outside [0, 100]", cfg.DefaultMvaRate)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseFloat(value string, fallback float64) float64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(base, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
