package predictor

import (
	"math"

	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Damped Holt Smoothing ──────────────────────────────────────────────────

// dampingFactor flattens the trend component as the horizon grows, so a
// recent run-up never extrapolates to infinity.
const dampingFactor = 0.9

// holtForecast runs additive damped-trend exponential smoothing. The
// smoothing parameters come from a coarse grid search minimizing one-step
// squared error. Returns ok=false when the series is too short or the fit
// degenerates, signalling the caller to fall back.
func holtForecast(values []float64, horizon int) (preds []float64, residStd float64, ok bool) {
	if len(values) < 8 {
		return nil, 0, false
	}

	bestSSE := math.Inf(1)
	var bestAlpha, bestBeta float64
	grid := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	for _, alpha := range grid {
		for _, beta := range grid {
			sse := holtSSE(values, alpha, beta)
			if sse < bestSSE {
				bestSSE = sse
				bestAlpha, bestBeta = alpha, beta
			}
		}
	}
	if math.IsInf(bestSSE, 1) || math.IsNaN(bestSSE) {
		return nil, 0, false
	}

	level, trend, resid := holtPass(values, bestAlpha, bestBeta)

	preds = make([]float64, horizon)
	damp := dampingFactor
	for h := 0; h < horizon; h++ {
		preds[h] = level + damp*trend
		// Cumulative damping: phi + phi^2 + ... keeps the trend bounded.
		damp += math.Pow(dampingFactor, float64(h+2))
	}
	return preds, timeseries.PopStdDev(resid), true
}

// holtSSE scores a parameter pair by one-step-ahead squared error.
func holtSSE(values []float64, alpha, beta float64) float64 {
	_, _, resid := holtPass(values, alpha, beta)
	var sse float64
	for _, e := range resid {
		sse += e * e
	}
	if math.IsNaN(sse) {
		return math.Inf(1)
	}
	return sse
}

// holtPass runs one smoothing pass and returns the final level, final
// trend, and the one-step residuals.
func holtPass(values []float64, alpha, beta float64) (level, trend float64, resid []float64) {
	level = values[0]
	trend = values[1] - values[0]
	resid = make([]float64, 0, len(values)-1)
	for _, v := range values[1:] {
		forecast := level + dampingFactor*trend
		resid = append(resid, v-forecast)
		newLevel := alpha*v + (1-alpha)*forecast
		trend = beta*(newLevel-level) + (1-beta)*dampingFactor*trend
		level = newLevel
	}
	return level, trend, resid
}
