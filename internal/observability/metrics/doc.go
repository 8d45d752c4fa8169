// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes shared infrastructure metrics including:
//   - HTTP request metrics for the worker's health and metrics endpoints
//   - Database query and connection pool metrics
//
// Delivery-specific metrics (dispatch outcomes, retry processing, dead
// letters) live next to the use cases that record them.
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "notify-hub/internal/observability/metrics"
//
//	func insertRecord(ctx context.Context) {
//	    start := time.Now()
//	    // ... run the query ...
//	    metrics.RecordDBQuery("insert_notification", time.Since(start))
//	}
package metrics
