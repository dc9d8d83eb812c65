package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/metrics"
)

func newMonitoringMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(m))
	mux.HandleFunc("/stats", statsHandler(m))
	mux.Handle("/metrics", m.Handler())
	return mux
}

func startMonitoringServer(addr string, m *metrics.Metrics, log logger.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMonitoringMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting monitoring server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Monitoring server error", logger.Error(err))
		}
	}()
	return srv
}

func shutdown(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Monitoring server shutdown", logger.Error(err))
	}
}

func healthHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := m.GetStats()

		status := "ok"
		code := http.StatusOK
		if !m.Healthy() {
			status = "error"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     status,
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		})
	}
}

func statsHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.GetStats())
	}
}
