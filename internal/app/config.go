package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	SentryDSN string

	// Upstream recognizer
	UpstreamURL string // empty means the production AssemblyAI endpoint

	// Relay tuning
	DebounceQuietMs   int // quiet period before a progressive final commits
	ReconnectAttempts int
	ReconnectBaseMs   int

	// Session housekeeping
	SessionMaxAge time.Duration
	ReapInterval  time.Duration

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		SentryDSN: getenv("SENTRY_DSN", ""),

		UpstreamURL: getenv("ASSEMBLYAI_STREAM_URL", ""),

		DebounceQuietMs:   getenvIntClamped("DEBOUNCE_QUIET_MS", 300, 50, 5000),
		ReconnectAttempts: getenvIntClamped("RECONNECT_ATTEMPTS", 3, 1, 10),
		ReconnectBaseMs:   getenvIntClamped("RECONNECT_BASE_MS", 1000, 100, 30000),

		SessionMaxAge: getenvDuration("SESSION_MAX_AGE", 4*time.Hour),
		ReapInterval:  getenvDuration("SESSION_REAP_INTERVAL", 10*time.Minute),

		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped reads an integer env var, falling back to def on missing
// or invalid values and clamping the result into [min, max].
func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
