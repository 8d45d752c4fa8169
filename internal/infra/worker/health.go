package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthServer exposes the delivery worker's probes:
//
//   - /health: liveness, 200 while the process responds at all
//   - /health/ready: readiness, 200 only after startup completes and while
//     every registered check (the queue consumers, in cmd/worker) passes
//
// Start blocks until the context is cancelled, then shuts down gracefully.
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady atomic.Bool
	server  *http.Server

	mu     sync.RWMutex
	checks map[string]func() bool
}

type healthResponse struct {
	Status string `json:"status"`
	Failed string `json:"failed,omitempty"`
}

func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		addr:   addr,
		logger: logger,
		checks: make(map[string]func() bool),
	}
}

// AddReadinessCheck registers a named condition that must hold for
// /health/ready to answer 200. Register checks before Start.
func (h *HealthServer) AddReadinessCheck(name string, check func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetReady flips the startup gate. Readiness checks only matter once the
// worker has declared itself ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// Start serves the probe endpoints until ctx is cancelled. It returns
// http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}
	if name, ok := h.failingCheck(); !ok {
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready", Failed: name})
		return
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// failingCheck returns the name of the first failing readiness check, or
// ok=true when all checks pass.
func (h *HealthServer) failingCheck() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, check := range h.checks {
		if !check() {
			return name, false
		}
	}
	return "", true
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
