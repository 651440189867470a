// Package config loads runtime configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration.
type Config struct {
	LogLevel string

	// Confirmation workflow.
	ConfirmSecret   string
	ConfirmTokenTTL time.Duration

	// Spine profile overlay; empty means compiled-in defaults only.
	ProfilePath string

	// Ledger sinks. Empty paths disable the corresponding sink.
	LedgerDBPath    string
	LedgerJSONLPath string

	// Kill-switch flag store: memory, sqlite or redis.
	KillSwitchBackend string
	KillSwitchDBPath  string
	RedisAddr         string

	// Per-actor turn rate limiting. Zero disables it.
	TurnRateRPS   float64
	TurnRateBurst int

	SessionTTL time.Duration

	// Tracing; empty endpoint leaves the no-op tracer in place.
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	secret := os.Getenv("CONFIRM_SECRET")
	if secret == "" {
		secret = "dev-only-confirmation-secret"
	}

	backend := os.Getenv("KILLSWITCH_BACKEND")
	if backend == "" {
		backend = "memory"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	service := os.Getenv("OTEL_SERVICE_NAME")
	if service == "" {
		service = "concierge"
	}

	return &Config{
		LogLevel:          logLevel,
		ConfirmSecret:     secret,
		ConfirmTokenTTL:   durationEnv("CONFIRM_TOKEN_TTL", 5*time.Minute),
		ProfilePath:       os.Getenv("PROFILE_PATH"),
		LedgerDBPath:      os.Getenv("LEDGER_DB_PATH"),
		LedgerJSONLPath:   os.Getenv("LEDGER_JSONL_PATH"),
		KillSwitchBackend: backend,
		KillSwitchDBPath:  os.Getenv("KILLSWITCH_DB_PATH"),
		RedisAddr:         redisAddr,
		TurnRateRPS:       floatEnv("TURN_RATE_RPS", 0),
		TurnRateBurst:     intEnv("TURN_RATE_BURST", 5),
		SessionTTL:        durationEnv("SESSION_TTL", time.Hour),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:       service,
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func floatEnv(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
