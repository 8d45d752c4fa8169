// Package config provides small environment-variable accessors shared by the
// worker binary and the infrastructure packages. Every accessor falls back to
// its default on a missing or malformed value; a misconfigured deployment
// starts with warnings instead of crashing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// GetEnvString returns the environment variable's value, or defaultValue when
// unset or empty. No validation, no warning.
//
//	path := GetEnvString("CHANNELS_CONFIG", "")
func GetEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt returns the environment variable parsed as an integer. Unparsable
// values fall back to defaultValue with a warning.
//
//	maxOpen := GetEnvInt("DB_MAX_OPEN_CONNS", 25)
func GetEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		slog.Warn("invalid integer value for environment variable, using default",
			slog.String("key", key),
			slog.String("value", valueStr),
			slog.Int("default", defaultValue),
			slog.String("error", err.Error()))
		return defaultValue
	}

	return value
}

// GetEnvBool returns the environment variable parsed as a boolean. Accepted
// spellings are 1/0, t/f, and true/false in any common casing; anything else
// falls back to defaultValue with a warning.
//
//	pretty := GetEnvBool("LOG_PRETTY", false)
func GetEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	switch valueStr {
	case "1", "t", "T", "true", "TRUE", "True":
		return true
	case "0", "f", "F", "false", "FALSE", "False":
		return false
	default:
		slog.Warn("invalid boolean value for environment variable, using default",
			slog.String("key", key),
			slog.String("value", valueStr),
			slog.Bool("default", defaultValue))
		return defaultValue
	}
}

// GetEnvDuration returns the environment variable parsed by
// time.ParseDuration ("30s", "1h30m"). Unparsable values fall back to
// defaultValue with a warning.
//
//	interval := GetEnvDuration("DB_STATS_INTERVAL", 15*time.Second)
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("invalid duration value for environment variable, using default",
			slog.String("key", key),
			slog.String("value", valueStr),
			slog.String("default", defaultValue.String()),
			slog.String("error", err.Error()))
		return defaultValue
	}

	return value
}

// GetEnvStringList returns the environment variable split on commas, with
// whitespace trimmed and empty entries dropped. An unset variable, or one
// holding only separators, yields defaultValue.
//
//	channels := GetEnvStringList("CHANNELS_ENABLED", nil)
//	// CHANNELS_ENABLED="webhook, slack" -> ["webhook", "slack"]
func GetEnvStringList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
