package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/csvout"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
)

// Service is what the HTTP surface needs from the application.
type Service interface {
	sharedobs.ReadinessChecker
	Latest() *pipeline.Result
	Reload(ctx context.Context) (*pipeline.Result, error)
}

// Server exposes health, readiness, metrics and the latest pipeline result.
type Server struct {
	httpServer *http.Server
	service    Service
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, service Service, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// POST /api/reload runs the pipeline, geocoding included, in-request.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(service))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/volumes", s.handleVolumes)
	mux.HandleFunc("GET /api/points", s.handlePoints)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleVolumes(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	if wantsJSON(r) {
		sharedobs.WriteJSON(w, http.StatusOK, res.Volumes)
		return
	}
	writeCSV(w, "volumes.csv", s.logger, func(w http.ResponseWriter) error {
		return csvout.WriteVolumes(w, res.Volumes)
	})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	if wantsJSON(r) {
		sharedobs.WriteJSON(w, http.StatusOK, res.Points)
		return
	}
	writeCSV(w, "points.csv", s.logger, func(w http.ResponseWriter) error {
		return csvout.WritePoints(w, res.Points)
	})
}

type summary struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	Markets        []string                   `json:"markets"`
	MarketTotals   []domain.MarketRoleTotal   `json:"market_totals"`
	LocationTotals []domain.LocationRoleTotal `json:"location_totals"`
	Stats          pipeline.Stats             `json:"stats"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.latest(w)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary{
		GeneratedAt:    res.GeneratedAt,
		Markets:        res.Markets,
		MarketTotals:   res.MarketTotals,
		LocationTotals: res.LocationTotals,
		Stats:          res.Stats,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		var stageErr *pipeline.StageError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		case errors.As(err, &stageErr):
			status = http.StatusUnprocessableEntity
		}
		s.logger.Error("reload failed", "error", err)
		sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "reloaded",
		"generated_at": res.GeneratedAt,
		"volumes":      len(res.Volumes),
		"points":       len(res.Points),
	})
}

func (s *Server) latest(w http.ResponseWriter) (*pipeline.Result, bool) {
	res := s.service.Latest()
	if res == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no forecast loaded yet"})
		return nil, false
	}
	return res, true
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

func writeCSV(w http.ResponseWriter, filename string, logger *slog.Logger, write func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil {
		logger.Warn("csv response truncated", "file", filename, "error", err)
	}
}
