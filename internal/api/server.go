// Package api exposes the operational HTTP surface: health probes,
// Prometheus metrics, and read access to persisted audit runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/audit"
	"github.com/seoscope/siteaudit/internal/metrics"
	"github.com/seoscope/siteaudit/internal/monitor"
)

const defaultPageLimit = 50

// Server routes operational and read-only audit endpoints.
type Server struct {
	store   audit.PageStore
	monitor *monitor.Service
	logger  *zap.Logger
	router  chi.Router
}

// NewServer wires the router. The monitor service may be nil; the check
// endpoint then reports that monitoring is not configured.
func NewServer(store audit.PageStore, mon *monitor.Service, logger *zap.Logger) *Server {
	s := &Server{
		store:   store,
		monitor: mon,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/runs/latest", s.latestRun)
		r.Get("/runs/{run_id}/pages", s.runPages)
		r.Post("/monitor/check", s.monitorCheck)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	seedURL := r.URL.Query().Get("seed_url")
	if seedURL == "" {
		s.writeError(w, http.StatusBadRequest, "seed_url query parameter is required")
		return
	}
	run, err := s.store.LatestCompletedRun(r.Context(), seedURL)
	if errors.Is(err, audit.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no completed run for seed URL")
		return
	}
	if err != nil {
		s.logger.Error("load latest run failed", zap.String("seed_url", seedURL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) runPages(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	pages, err := s.store.TopPages(r.Context(), runID, limit)
	if errors.Is(err, audit.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("load run pages failed", zap.String("run_id", runID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "pages": pages})
}

type monitorCheckRequest struct {
	SeedURL string `json:"seed_url"`
}

func (s *Server) monitorCheck(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "monitoring is not configured")
		return
	}
	var req monitorCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SeedURL == "" {
		s.writeError(w, http.StatusBadRequest, "seed_url is required")
		return
	}
	report, err := s.monitor.Check(r.Context(), req.SeedURL)
	if errors.Is(err, audit.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no completed run for seed URL")
		return
	}
	if err != nil {
		s.logger.Error("monitor check failed", zap.String("seed_url", req.SeedURL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
