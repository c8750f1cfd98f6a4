// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot credentials,
// state and database paths, the watch poll interval, Telegram client tuning,
// logging, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig defines Bot API client settings.
type TelegramConfig struct {
	Token         string        // BOT_TOKEN (required)
	APIBase       string        // TG_API_BASE, overridable for tests
	RequestTO     time.Duration // TG_REQUEST_TIMEOUT per-call HTTP timeout
	UpdateTimeout int           // UPDATE_TIMEOUT long-poll timeout in seconds
	RateRPS       float64       // TG_RATE_RPS outbound tokens per second
	RateBurst     int           // TG_RATE_BURST outbound bucket size
}

// Config holds all configuration values for the application.
type Config struct {
	// Bot
	Telegram     TelegramConfig
	StatePath    string        // JSON state snapshot location
	DBPath       string        // SQLite alert-history path
	PollInterval time.Duration // watch timer period

	// Ops HTTP server
	Port    string // just the number
	GinMode string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
//
// BOT_TOKEN is the only required value: without it the process cannot talk
// to the platform at all, so a missing token is a startup error rather than
// something to degrade around.
func Load() (Config, error) {
	cfg := Config{
		Telegram: TelegramConfig{
			Token:         getenv("BOT_TOKEN", ""),
			APIBase:       getenv("TG_API_BASE", "https://api.telegram.org"),
			RequestTO:     getdur("TG_REQUEST_TIMEOUT", 30*time.Second),
			UpdateTimeout: getint("UPDATE_TIMEOUT", 50),
			RateRPS:       getfloat("TG_RATE_RPS", 25.0),
			RateBurst:     getint("TG_RATE_BURST", 5),
		},
		StatePath:    getenv("STATE_PATH", "./state.json"),
		DBPath:       getenv("DB_PATH", "alerts.db"),
		PollInterval: time.Duration(getint("POLL_INTERVAL_SEC", 1800)) * time.Second,

		Port:    getenv("PORT", "8080"),
		GinMode: strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "gift-analyst-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return cfg, errors.New("BOT_TOKEN must be set")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.StatePath) == "" {
		return cfg, errors.New("STATE_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.PollInterval <= 0 {
		return cfg, errors.New("POLL_INTERVAL_SEC must be > 0")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.Telegram.RequestTO <= 0 {
		return cfg, errors.New("TG_REQUEST_TIMEOUT must be a positive duration")
	}
	if cfg.Telegram.UpdateTimeout < 0 {
		return cfg, errors.New("UPDATE_TIMEOUT must be >= 0")
	}
	if cfg.Telegram.RateRPS <= 0 {
		return cfg, errors.New("TG_RATE_RPS must be > 0")
	}
	if cfg.Telegram.RateBurst < 1 {
		return cfg, errors.New("TG_RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
