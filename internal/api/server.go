// Package api provides the HTTP surface over the forecast engine: forecast
// generation, what-if scenarios, forecast validation, and the archive of
// past runs. It owns JSON binding and status codes; all business logic
// stays in the engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fincast-io/fincast/internal/forecast/engine"
	"github.com/fincast-io/fincast/internal/observability"
	"github.com/fincast-io/fincast/internal/store"
)

// Server is the FinCast HTTP API server.
type Server struct {
	engine         *engine.Engine
	validator      *engine.Validator
	log            zerolog.Logger
	archive        *store.Store // nil when archiving is disabled
	metricsEnabled bool
}

// NewServer creates the API server over an engine.
func NewServer(eng *engine.Engine, log zerolog.Logger) *Server {
	return &Server{
		engine:    eng,
		validator: engine.NewValidator(),
		log:       log,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetArchive attaches the forecast-run archive.
func (s *Server) SetArchive(st *store.Store) { s.archive = st }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/forecasts", s.route("/v1/forecasts", s.handleGenerateForecast))
		r.Method(http.MethodPost, "/forecasts/validate", s.route("/v1/forecasts/validate", s.handleValidateForecast))
		r.Method(http.MethodPost, "/scenarios", s.route("/v1/scenarios", s.handleGenerateScenario))
		if s.archive != nil {
			r.Method(http.MethodGet, "/runs", s.route("/v1/runs", s.handleListRuns))
			r.Method(http.MethodGet, "/runs/{id}", s.route("/v1/runs/{id}", s.handleGetRun))
		}
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// route wraps a handler with per-route request counting.
func (s *Server) route(pattern string, h http.HandlerFunc) http.Handler {
	return observability.InstrumentHandler(pattern, h)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
