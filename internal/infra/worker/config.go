package worker

import (
	"fmt"
	"log/slog"
	"time"

	"notify-hub/internal/pkg/config"
)

// WorkerConfig holds the operational configuration for the delivery worker:
// the maintenance schedule, its timezone, shutdown behavior, and the health
// endpoint.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have defaults and validation rules so the worker can start
// safely even with invalid or missing configuration.
type WorkerConfig struct {
	// PurgeSchedule is the cron expression for the expired idempotency-key
	// purge job.
	// Format: "minute hour day month weekday"
	// Example: "0 * * * *" (every hour)
	// Validation: Must be a valid cron expression (5 fields)
	// Default: "0 * * * *"
	PurgeSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Example: "UTC", "Asia/Tokyo"
	// Validation: Must be a valid IANA timezone name
	// Default: "UTC"
	Timezone string

	// DrainTimeout is how long shutdown waits for in-flight queue batches
	// to finish before the process exits.
	// Range: 1 second to 5 minutes
	// Default: 30 seconds
	DrainTimeout time.Duration

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int

	// MetricsPort is the port number for the Prometheus metrics server.
	// Range: 1024-65535
	// Default: 9090
	MetricsPort int
}

// DefaultConfig returns a WorkerConfig with production-ready defaults:
// hourly key purge in UTC, 30-second drain, standard exporter ports.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PurgeSchedule: "0 * * * *",
		Timezone:      "UTC",
		DrainTimeout:  30 * time.Second,
		HealthPort:    9091,
		MetricsPort:   9090,
	}
}

// Validate checks the configuration values using the reusable validators from
// internal/pkg/config. If multiple fields are invalid, all errors are
// collected and returned together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.PurgeSchedule); err != nil {
		errors = append(errors, fmt.Errorf("purge schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidateDuration(c.DrainTimeout, 1*time.Second, 5*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("drain timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. Validate each loaded value
//  4. If validation fails: use default value, log warning, increment metrics
//  5. Never return error - always return a valid configuration
//
// Environment variables:
//   - PURGE_SCHEDULE: Cron expression (default: "0 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - DRAIN_TIMEOUT: Duration string, e.g., "30s" (default: 30 seconds)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
//   - WORKER_METRICS_PORT: Integer 1024-65535 (default: 9090)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	result := config.LoadEnvWithFallback("PURGE_SCHEDULE", cfg.PurgeSchedule, config.ValidateCronSchedule)
	cfg.PurgeSchedule = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("purge_schedule")
		metrics.RecordFallback("purge_schedule", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "PurgeSchedule"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("timezone")
		metrics.RecordFallback("timezone", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "Timezone"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvDuration("DRAIN_TIMEOUT", cfg.DrainTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 5*time.Minute)
	})
	cfg.DrainTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("drain_timeout")
		metrics.RecordFallback("drain_timeout", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "DrainTimeout"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("health_port")
		metrics.RecordFallback("health_port", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "HealthPort"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvInt("WORKER_METRICS_PORT", cfg.MetricsPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.MetricsPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("metrics_port")
		metrics.RecordFallback("metrics_port", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "MetricsPort"),
				slog.String("warning", warning))
		}
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}
