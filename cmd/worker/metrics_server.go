package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	obsmetrics "notify-hub/internal/observability/metrics"
	"notify-hub/internal/observability/tracing"
)

// startMetricsServer starts the Prometheus metrics HTTP server on the given
// port. It runs in a background goroutine and shuts down gracefully when the
// context is cancelled.
//
// The server exposes:
//   - GET /metrics - Prometheus metrics endpoint (scraped by Prometheus server)
//
// Requests pass through the HTTP metrics middleware and the tracing
// middleware, so scrapes show up in the request metrics and external callers
// can correlate via W3C Trace Context headers.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obsmetrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      tracing.Middleware(obsmetrics.Middleware(mux)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}
