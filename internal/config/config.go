package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide settings, constructed once at startup and
// handed by reference to the router and the webhook dispatcher.
type Config struct {
	DatabaseURL string
	ServerAddr  string
	Env         string

	DBMaxConns int32

	OpeningBalanceMinorUnits int64

	WebhookBaseDelay    time.Duration
	WebhookMaxAttempts  int
	WebhookBatchSize    int
	WebhookHTTPTimeout  time.Duration
	WebhookIdleSleep    time.Duration
	WebhookErrorSleep   time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from the environment, the way the teacher's
// internal/config.Load does, extended with the settings the ledger,
// dispatcher and rate limiter need.
func Load() (*Config, error) {
	dbURL := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("DB_SOURCE"))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = "0.0.0.0:3000"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	cfg := &Config{
		DatabaseURL: dbURL,
		ServerAddr:  addr,
		Env:         env,

		DBMaxConns: int32(envInt("DB_MAX_CONNS", 5)),

		OpeningBalanceMinorUnits: int64(envInt("ACCOUNT_OPENING_BALANCE", 10000)),

		WebhookBaseDelay:   envDuration("WEBHOOK_DISPATCH_BASE_DELAY", 10*time.Second),
		WebhookMaxAttempts: envInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookBatchSize:   envInt("WEBHOOK_BATCH_SIZE", 10),
		WebhookHTTPTimeout: envDuration("WEBHOOK_HTTP_TIMEOUT", 10*time.Second),
		WebhookIdleSleep:   envDuration("WEBHOOK_IDLE_SLEEP", 2*time.Second),
		WebhookErrorSleep:  envDuration("WEBHOOK_ERROR_SLEEP", 5*time.Second),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
