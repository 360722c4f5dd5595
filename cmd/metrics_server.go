package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"textdigest/internal/summarizer"
)

const metricsShutdownTimeout = 5 * time.Second

type backendStatus struct {
	Name    string `json:"name"`
	Breaker string `json:"breaker"`
}

type healthResponse struct {
	Status   string          `json:"status"`
	Backends []backendStatus `json:"backends,omitempty"`
}

// startMetricsServer serves /metrics and /health on addr until ctx is done.
func startMetricsServer(
	ctx context.Context,
	addr string,
	reg *prometheus.Registry,
	breakers map[string]*summarizer.Breaker,
	log *slog.Logger,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", healthHandler(breakers))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.InfoContext(ctx, "Metrics server is starting",
			"addr", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Metrics server failed",
				"error", err,
				"addr", addr)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down metrics server",
				"error", err,
				"addr", addr)
		}
	}()

	return server
}

// healthHandler reports 503 when every backend breaker is open.
func healthHandler(breakers map[string]*summarizer.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := make([]string, 0, len(breakers))
		for name := range breakers {
			names = append(names, name)
		}
		slices.Sort(names)

		resp := healthResponse{Status: "healthy"}
		open := 0

		for _, name := range names {
			state := breakers[name].State()
			if state == gobreaker.StateOpen {
				open++
			}

			resp.Backends = append(resp.Backends, backendStatus{
				Name:    name,
				Breaker: state.String(),
			})
		}

		statusCode := http.StatusOK
		if len(names) > 0 && open == len(names) {
			resp.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
