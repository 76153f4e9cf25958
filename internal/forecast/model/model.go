// Package model implements the three base forecasters behind the ensemble:
//
//   - AutoRegressive: a linear ARIMA(p,d,q) with exhaustive order search,
//     capturing pure autocorrelation structure.
//   - FeatureRegression: regularized linear regression over engineered
//     calendar/lag/rolling features, capturing trend and seasonality.
//   - GradientBoosted: gradient-boosted regression trees over an expanded
//     feature set, capturing non-linear interactions.
//
// The three deliberately fail in different ways; the ensemble package
// weights them against each other per category.
//
// Common contract: Fit trains on a weekly series and records explicit fit
// state; Forecast produces point predictions plus an 80% band (±1.28
// standard deviations under a normal approximation) for a horizon. A model
// that was never fitted, or whose fit failed, returns ErrNotFitted; the
// caller decides the fallback.
package model

import (
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// z80 is the normal quantile for an 80% two-sided interval.
const z80 = 1.28

// ─── Kind ───────────────────────────────────────────────────────────────────

// Kind identifies a base forecaster.
type Kind int

const (
	KindAutoRegressive Kind = iota
	KindFeatureRegression
	KindGradientBoosted
)

// String returns the canonical model name.
func (k Kind) String() string {
	switch k {
	case KindAutoRegressive:
		return "autoregressive"
	case KindFeatureRegression:
		return "feature_regression"
	case KindGradientBoosted:
		return "gradient_boosted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Kind works as a JSON
// map key in ensemble payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "autoregressive":
		*k = KindAutoRegressive
	case "feature_regression":
		*k = KindFeatureRegression
	case "gradient_boosted":
		*k = KindGradientBoosted
	}
	return nil
}

// Kinds returns all base forecaster kinds in declaration order.
func Kinds() []Kind {
	return []Kind{KindAutoRegressive, KindFeatureRegression, KindGradientBoosted}
}

// ─── Bands ──────────────────────────────────────────────────────────────────

// Bands is a forecast with its confidence envelope. All three slices have
// length == horizon.
type Bands struct {
	Point []float64 `json:"point"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// ─── Forecaster Contract ────────────────────────────────────────────────────

// Forecaster is the contract every base model satisfies.
type Forecaster interface {
	// Kind identifies the model.
	Kind() Kind

	// Fit trains on the series. On error the model records itself as
	// unfitted with the failure reason; a later Fit may succeed.
	Fit(s timeseries.Series) error

	// Forecast predicts horizon weekly steps ahead with an 80% band.
	// Returns ErrNotFitted when Fit has not succeeded.
	Forecast(s timeseries.Series, horizon int) (Bands, error)

	// FitState reports the explicit fitted/unfitted state.
	FitState() FitState
}

// ─── Fit State ──────────────────────────────────────────────────────────────

// FitState makes "is this model usable" an explicit value instead of an
// ad-hoc nil check: either Fitted, or Unfitted with the recorded reason.
type FitState struct {
	Fitted bool
	Reason string // populated only when Fitted is false
}

// fitted returns the fitted state.
func fittedState() FitState { return FitState{Fitted: true} }

// unfitted returns an unfitted state carrying the failure reason.
func unfittedState(reason string) FitState {
	return FitState{Fitted: false, Reason: reason}
}

// ─── Shared Helpers ─────────────────────────────────────────────────────────

// residualBands builds the flat interval policy shared by the regression
// and tree models: ±1.28×residual-std around each point, constant across
// the horizon, lower bound floored at zero.
func residualBands(point []float64, residualStd float64) Bands {
	lower := make([]float64, len(point))
	upper := make([]float64, len(point))
	for i, p := range point {
		lower[i] = p - z80*residualStd
		if lower[i] < 0 {
			lower[i] = 0
		}
		upper[i] = p + z80*residualStd
	}
	return Bands{Point: point, Lower: lower, Upper: upper}
}
