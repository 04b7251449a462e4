// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse is the body served on /healthz.
type HealthResponse struct {
	State        string `json:"state"`
	Generation   uint64 `json:"generation"`
	LastSequence int64  `json:"last_sequence"`
}

// AdminHandler returns the admin API routes: /metrics and /healthz.
func (b *Bridge) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", b.HandleHealth)
	return mux
}

// HandleHealth is an HTTP handler for GET /healthz. It answers 200 while
// the session is connected and 503 during cooldown or reconnection.
func (b *Bridge) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := b.State()
	resp := HealthResponse{
		State:        state.String(),
		Generation:   b.Generation(),
		LastSequence: b.LastSequence(),
	}
	w.Header().Set("Content-Type", "application/json")
	if state != StateConnected {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		b.log.Warn().Err(err).Msg("Failed to write health response")
	}
}

// StartAdminAPI listens on addr and serves AdminHandler until ctx is done.
// The listener is bound before returning so that address errors surface
// at startup.
func (b *Bridge) StartAdminAPI(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Handler:      b.AdminHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		b.log.Info().Str("addr", ln.Addr().String()).Msg("Starting admin API")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error().Err(err).Msg("Admin API error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return ln.Addr(), nil
}
