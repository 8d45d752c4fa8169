// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Trace ID propagation from active OpenTelemetry spans
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "notify-hub/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started", slog.String("version", "1.0"))
//	}
//
//	func deliver(ctx context.Context) {
//	    logger := logging.WithTraceID(ctx, slog.Default())
//	    logger.Info("delivering notification")
//	}
package logging
