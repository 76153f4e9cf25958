// Package observability exposes the service's Prometheus metrics: forecast
// generation volume and latency, degraded categories, and HTTP traffic.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Engine Metrics ─────────────────────────────────────────────────────────

// ForecastsGenerated counts completed forecast generations.
var ForecastsGenerated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fincast",
	Subsystem: "engine",
	Name:      "forecasts_generated_total",
	Help:      "Total forecasts generated.",
})

// ForecastDuration observes end-to-end generation latency.
var ForecastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "fincast",
	Subsystem: "engine",
	Name:      "forecast_duration_seconds",
	Help:      "Forecast generation latency in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// ForecastHorizonWeeks observes requested horizons.
var ForecastHorizonWeeks = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "fincast",
	Subsystem: "engine",
	Name:      "forecast_horizon_weeks",
	Help:      "Requested forecast horizon in weeks.",
	Buckets:   []float64{1, 4, 8, 13, 26, 52},
})

// CategoriesDegraded counts categories that fell back to the zero
// forecast, by category name.
var CategoriesDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fincast",
	Subsystem: "engine",
	Name:      "categories_degraded_total",
	Help:      "Categories degraded to a zero forecast, by category.",
}, []string{"category"})

// ─── Store Metrics ──────────────────────────────────────────────────────────

// StoreWrites counts forecast-run archive writes by outcome.
var StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fincast",
	Subsystem: "store",
	Name:      "writes_total",
	Help:      "Forecast archive writes by outcome.",
}, []string{"outcome"})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fincast",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "API requests by route and status.",
}, []string{"route", "status"})

// ─── Recorder ───────────────────────────────────────────────────────────────

// Recorder adapts the package metrics to the engine's observation hook.
type Recorder struct{}

// ForecastGenerated records one completed generation.
func (Recorder) ForecastGenerated(_ string, horizon int, seconds float64) {
	ForecastsGenerated.Inc()
	ForecastDuration.Observe(seconds)
	ForecastHorizonWeeks.Observe(float64(horizon))
}

// CategoryDegraded records a category falling back to zeros.
func (Recorder) CategoryDegraded(category string) {
	CategoriesDegraded.WithLabelValues(category).Inc()
}

// RecordStoreWrite records an archive write outcome.
func RecordStoreWrite(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreWrites.WithLabelValues(outcome).Inc()
}

// InstrumentHandler wraps an http.Handler, counting requests per route.
func InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
