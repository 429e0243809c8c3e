package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DBURL    string
	RedisURL string

	JWTSecret       string
	SupabaseJWKSURL string

	StripeSecretKey     string
	StripeWebhookSecret string

	AppURL     string
	CORSOrigin string

	CatalogCacheTTL   time.Duration
	ReconcileSchedule string
	ReconcileTimeout  time.Duration

	SentryDSN string
}

// Load reads .env when present, then the process environment. Every missing
// required key is reported in one error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	var missing []string
	mustEnv := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		AppEnv:              getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DBURL:               mustEnv("DB_URL"),
		RedisURL:            getEnv("REDIS_URL", ""),
		SupabaseJWKSURL:     getEnv("SUPABASE_JWKS_URL", ""),
		StripeSecretKey:     mustEnv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: mustEnv("STRIPE_WEBHOOK_SECRET"),
		AppURL:              strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", "@every 1h"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
	}
	if cfg.SupabaseJWKSURL == "" {
		cfg.JWTSecret = mustEnv("JWT_SECRET")
	} else {
		cfg.JWTSecret = getEnv("JWT_SECRET", "")
	}
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.AppURL)

	var err error
	if cfg.CatalogCacheTTL, err = durationEnv("CATALOG_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileTimeout, err = durationEnv("RECONCILE_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration like 10m", key, raw)
	}
	return d, nil
}
