// Package config loads the server's environment-driven settings once at
// startup, grounded on dragonfox-mediasync-server's main.go: an optional
// .env load via godotenv followed by os.Getenv reads with defaults,
// lifted into its own package here because this project has more
// env-derived knobs than that single-file example needed.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the server needs. Timer
// durations are overridable so tests can shrink a 10-minute reap window
// to milliseconds without touching the production defaults.
type Config struct {
	Port     string
	NodeEnv  string
	MaxConns int

	EarlyIdleTimeout  time.Duration
	LifetimeTimeout   time.Duration
	QueueProbeEvery   time.Duration
	LobbyReapAfter    time.Duration
	ReadySettleDelay  time.Duration
	StartStaggerDelay time.Duration
}

// Production reports whether NodeEnv selects the quieter logging profile.
func (c Config) Production() bool { return c.NodeEnv == "production" }

// Load reads configuration from the environment, first attempting to load
// a local .env file (silently ignored if absent — that's the expected
// case in a deployed container, not an error).
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment only")
	}

	return Config{
		Port:     getenvDefault("PORT", "8080"),
		NodeEnv:  getenvDefault("NODE_ENV", "development"),
		MaxConns: getenvIntDefault("MAX_CONNS", 4096),

		EarlyIdleTimeout:  getenvDurationDefault("EARLY_IDLE_TIMEOUT", 20*time.Second),
		LifetimeTimeout:   getenvDurationDefault("LIFETIME_TIMEOUT", 45*time.Minute),
		QueueProbeEvery:   getenvDurationDefault("QUEUE_PROBE_INTERVAL", 10*time.Second),
		LobbyReapAfter:    getenvDurationDefault("LOBBY_REAP_AFTER", 10*time.Minute),
		ReadySettleDelay:  getenvDurationDefault("READY_SETTLE_DELAY", 1*time.Second),
		StartStaggerDelay: getenvDurationDefault("START_STAGGER_DELAY", 250*time.Millisecond),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env override, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env override, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
