package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	// Verify that globalTestMetrics (created via NewWorkerMetrics) is initialized correctly
	// We use the global instance to avoid duplicate Prometheus registration
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewWorkerMetrics returned nil")
	}

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}

	if metrics.MaintenanceRunsTotal == nil {
		t.Error("MaintenanceRunsTotal is nil")
	}

	if metrics.MaintenanceDurationSeconds == nil {
		t.Error("MaintenanceDurationSeconds is nil")
	}

	if metrics.IdempotencyKeysPurgedTotal == nil {
		t.Error("IdempotencyKeysPurgedTotal is nil")
	}

	if metrics.MaintenanceLastSuccessTimestamp == nil {
		t.Error("MaintenanceLastSuccessTimestamp is nil")
	}

	// Should not panic when calling MustRegister (metrics are auto-registered via promauto)
	metrics.MustRegister()
}

func TestWorkerMetrics_RecordMaintenanceRun(t *testing.T) {
	// Create a custom registry for isolated testing
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_maintenance_runs_total",
		Help: "Test counter",
	}, []string{"status"})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{
		MaintenanceRunsTotal: counter,
	}

	metrics.RecordMaintenanceRun("success")
	metrics.RecordMaintenanceRun("success")
	metrics.RecordMaintenanceRun("failure")

	successCount := testutil.ToFloat64(metrics.MaintenanceRunsTotal.WithLabelValues("success"))
	if successCount != 2 {
		t.Errorf("Expected success count 2, got %f", successCount)
	}

	failureCount := testutil.ToFloat64(metrics.MaintenanceRunsTotal.WithLabelValues("failure"))
	if failureCount != 1 {
		t.Errorf("Expected failure count 1, got %f", failureCount)
	}
}

func TestWorkerMetrics_RecordMaintenanceDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_maintenance_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300},
	})
	reg.MustRegister(histogram)

	metrics := &WorkerMetrics{
		MaintenanceDurationSeconds: histogram,
	}

	metrics.RecordMaintenanceDuration(0.2)
	metrics.RecordMaintenanceDuration(1.5)
	metrics.RecordMaintenanceDuration(40.0)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_worker_maintenance_duration_seconds" {
			found = true
			if len(mf.GetMetric()) == 0 {
				t.Error("Expected metrics to be recorded")
			}
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}
	if !found {
		t.Error("histogram not found in registry")
	}
}

func TestWorkerMetrics_RecordKeysPurged(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_idempotency_keys_purged_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{
		IdempotencyKeysPurgedTotal: counter,
	}

	metrics.RecordKeysPurged(12)
	metrics.RecordKeysPurged(3)

	if got := testutil.ToFloat64(metrics.IdempotencyKeysPurgedTotal); got != 15 {
		t.Errorf("Expected purged total 15, got %f", got)
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_maintenance_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &WorkerMetrics{
		MaintenanceLastSuccessTimestamp: gauge,
	}

	metrics.RecordLastSuccess()

	if got := testutil.ToFloat64(metrics.MaintenanceLastSuccessTimestamp); got <= 0 {
		t.Errorf("Expected positive timestamp, got %f", got)
	}
}
