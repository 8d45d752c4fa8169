package worker

import (
	"notify-hub/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the delivery worker process.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// metrics for the scheduled maintenance job (expired idempotency-key purge).
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_maintenance_runs_total: Total maintenance job runs by status
//   - worker_maintenance_duration_seconds: Duration histogram of maintenance runs
//   - worker_idempotency_keys_purged_total: Total expired keys deleted
//   - worker_maintenance_last_success_timestamp: Unix timestamp of last successful run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// MaintenanceRunsTotal counts maintenance job runs.
	// Labels: status (success, failure)
	MaintenanceRunsTotal *prometheus.CounterVec

	// MaintenanceDurationSeconds measures maintenance run duration.
	// Buckets cover sub-second purges through slow full-table scans.
	MaintenanceDurationSeconds prometheus.Histogram

	// IdempotencyKeysPurgedTotal counts expired idempotency keys deleted.
	IdempotencyKeysPurgedTotal prometheus.Counter

	// MaintenanceLastSuccessTimestamp records the last successful run time.
	MaintenanceLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance. Metrics are registered
// with the default registry via promauto on creation.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		MaintenanceRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_maintenance_runs_total",
			Help: "Total number of maintenance job runs by status (success/failure)",
		}, []string{"status"}),

		MaintenanceDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_maintenance_duration_seconds",
			Help:    "Duration of maintenance job runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300},
		}),

		IdempotencyKeysPurgedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_idempotency_keys_purged_total",
			Help: "Total number of expired idempotency keys deleted",
		}),

		MaintenanceLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_maintenance_last_success_timestamp",
			Help: "Unix timestamp of the last successful maintenance run",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordMaintenanceRun increments the run counter for the given status
// ("success" or "failure").
func (m *WorkerMetrics) RecordMaintenanceRun(status string) {
	m.MaintenanceRunsTotal.WithLabelValues(status).Inc()
}

// RecordMaintenanceDuration observes the duration of a maintenance run in
// seconds.
func (m *WorkerMetrics) RecordMaintenanceDuration(seconds float64) {
	m.MaintenanceDurationSeconds.Observe(seconds)
}

// RecordKeysPurged adds the number of idempotency keys deleted in one run.
func (m *WorkerMetrics) RecordKeysPurged(count int64) {
	m.IdempotencyKeysPurgedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.MaintenanceLastSuccessTimestamp.SetToCurrentTime()
}
