// Package tracing provides OpenTelemetry tracing integration.
//
// The dispatch pipeline starts a span per delivery request and a child span
// per channel send. The HTTP middleware in this package extracts W3C Trace
// Context from incoming requests so external callers can correlate their
// traces with the worker's.
//
// Example usage:
//
//	import "notify-hub/internal/observability/tracing"
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "dispatch")
//	    defer span.End()
//	    // ... deliver ...
//	}
package tracing
