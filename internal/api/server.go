// Package api exposes the HTTP interface for the coverage service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dsmetrics/tplscan/internal/metrics"
	"github.com/dsmetrics/tplscan/internal/scan"
)

// ScanRunner executes one full collection pass on demand.
type ScanRunner interface {
	Run(ctx context.Context) (scan.RunSummary, error)
}

// Config controls server behavior.
type Config struct {
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	ScanTimeout    time.Duration
}

// Server wires HTTP handlers to the scan pipeline and run store.
type Server struct {
	router   chi.Router
	runStore scan.RunStore
	runner   ScanRunner
	cfg      Config
	logger   *zap.Logger
	scanning atomic.Bool
}

// NewServer constructs a Server with middleware and routes. runner may be nil,
// which disables the scan trigger endpoint.
func NewServer(runStore scan.RunStore, runner ScanRunner, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = 30 * time.Minute
	}
	s := &Server{
		runStore: runStore,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Route("/v1", func(r chi.Router) {
			r.Get("/runs/latest", s.latestRun)
			r.Get("/runs/latest/pages/{name}", s.latestRunPage)
			r.Post("/scan", s.triggerScan)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.runStore.LatestRun(r.Context()); err != nil && !isNotFound(err) {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runStore.LatestRun(r.Context())
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no runs recorded yet")
			return
		}
		s.logger.Error("latest run lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) latestRunPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	run, err := s.runStore.LatestRun(r.Context())
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no runs recorded yet")
			return
		}
		s.logger.Error("latest run lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	for _, page := range run.Pages {
		if page.Page.Name == name {
			writeJSON(w, http.StatusOK, page)
			return
		}
	}
	writeError(w, http.StatusNotFound, "page not found in latest run")
}

func (s *Server) triggerScan(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusNotImplemented, "scan trigger disabled")
		return
	}
	if !s.scanning.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a scan is already running")
		return
	}

	// The run outlives the HTTP request, so it gets its own context.
	go func() {
		defer s.scanning.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanTimeout)
		defer cancel()
		summary, err := s.runner.Run(ctx)
		if err != nil {
			s.logger.Error("triggered scan failed", zap.Error(err))
			return
		}
		s.logger.Info("triggered scan finished",
			zap.String("run_id", summary.RunID),
			zap.Int("pages_scanned", summary.PagesScanned),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

func isNotFound(err error) bool {
	return errors.Is(err, scan.ErrNoRuns)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
