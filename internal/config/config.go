// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// database, logging, cache TTLs, slow-operation thresholds, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-booking-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath string // SQLite path

	// Cache TTLs
	ListTTL   time.Duration // list + count entries
	DetailTTL time.Duration // per-booking entries
	StatsTTL  time.Duration // dashboard stats entries

	// Slow-operation diagnostics
	SlowThreshold     time.Duration // samples above this are persisted
	CriticalThreshold time.Duration // samples above this are logged immediately
	DiagRPS           float64       // immediate-log events per second (>= 0)
	DiagBurst         int           // immediate-log burst (>= 1)

	// Pagination
	PageSizeDefault int
	PageSizeMax     int

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

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath: getenv("DB_PATH", "bookings.db"),

		// Cache TTLs
		ListTTL:   getdur("CACHE_LIST_TTL", 5*time.Minute),
		DetailTTL: getdur("CACHE_DETAIL_TTL", 10*time.Minute),
		StatsTTL:  getdur("CACHE_STATS_TTL", 5*time.Minute),

		// Diagnostics
		SlowThreshold:     getdur("SLOW_THRESHOLD", 500*time.Millisecond),
		CriticalThreshold: getdur("CRITICAL_THRESHOLD", time.Second),
		DiagRPS:           getfloat("DIAG_RPS", 1.0),
		DiagBurst:         getint("DIAG_BURST", 5),

		// Pagination
		PageSizeDefault: getint("PAGE_SIZE_DEFAULT", 20),
		PageSizeMax:     getint("PAGE_SIZE_MAX", 100),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-booking-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.ListTTL <= 0 || cfg.DetailTTL <= 0 || cfg.StatsTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	if cfg.SlowThreshold <= 0 || cfg.CriticalThreshold <= 0 {
		return cfg, errors.New("slow thresholds must be positive durations")
	}
	if cfg.CriticalThreshold < cfg.SlowThreshold {
		return cfg, errors.New("CRITICAL_THRESHOLD must be >= SLOW_THRESHOLD")
	}
	if cfg.DiagRPS < 0 {
		return cfg, errors.New("DIAG_RPS must be >= 0")
	}
	if cfg.DiagBurst < 1 {
		return cfg, errors.New("DIAG_BURST must be >= 1")
	}
	if cfg.PageSizeDefault < 1 {
		return cfg, errors.New("PAGE_SIZE_DEFAULT must be >= 1")
	}
	if cfg.PageSizeMax < cfg.PageSizeDefault {
		return cfg, errors.New("PAGE_SIZE_MAX must be >= PAGE_SIZE_DEFAULT")
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
