// Package server exposes a small read-only HTTP status API for daemon mode.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/safescore/internal/pipeline"
)

// StatsSource reports pipeline progress, typically a *pipeline.Orchestrator.
type StatsSource interface {
	Totals() (ticks int, totals pipeline.TickStats)
}

// StateSource reports in-memory state sizes, typically a *pipeline.State.
type StateSource interface {
	Sizes() (seen, known, history int)
}

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Server serves /healthz and /api/status over the running pipeline.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	started    time.Time
}

// New creates a Server with all routes registered.
func New(cfg Config, stats StatsSource, state StateSource, logger *slog.Logger) *Server {
	s := &Server{
		logger:  logger,
		started: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus(stats, state))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      logging(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. It blocks until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(stats StatsSource, state StateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticks, totals := stats.Totals()
		seen, known, history := state.Sizes()
		writeJSON(w, http.StatusOK, map[string]any{
			"uptime_seconds":  int(time.Since(s.started).Seconds()),
			"ticks":           ticks,
			"collected":       totals.Collected,
			"scored":          totals.Scored,
			"duplicates":      totals.Duplicates,
			"pending":         totals.Pending,
			"new_known":       totals.NewKnown,
			"seen_ids":        seen,
			"known_addresses": known,
			"history_entries": history,
		})
	}
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// logging logs every request with method, path, status, and duration.
func logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the HTTP status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}
