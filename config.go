package jobexpect

import (
	"log/slog"
	"os"
	"strings"
)

// Config represents jobexpect configuration.
type Config struct {
	// Queue name assigned to jobs enqueued without an explicit queue
	// (default: "default").
	DefaultQueue string

	// Verbosity of the adapter's logger (default: error).
	LogLevel slog.Level
}

// LoadConfig loads jobexpect configuration from environment variables.
// It reads the following environment variables:
//   - JOBEXPECT_DEFAULT_QUEUE: default queue name (default: "default")
//   - JOBEXPECT_LOG_LEVEL: one of debug, info, warn, error (default: error)
//
// Returns a Config struct with default values if environment variables are
// not set.
func LoadConfig() *Config {
	return &Config{
		DefaultQueue: getEnvString("JOBEXPECT_DEFAULT_QUEUE", DefaultQueueName),
		LogLevel:     getEnvLogLevel("JOBEXPECT_LOG_LEVEL", slog.LevelError),
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvLogLevel(key string, defaultValue slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv(key)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultValue
	}
}
