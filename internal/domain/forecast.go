package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ─── Trend ──────────────────────────────────────────────────────────────────

// Trend classifies the direction a category's series is heading.
type Trend int

const (
	TrendStable Trend = iota
	TrendIncreasing
	TrendDecreasing
)

// String returns the canonical trend label.
func (t Trend) String() string {
	switch t {
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	default:
		return "stable"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Trend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "increasing":
		*t = TrendIncreasing
	case "decreasing":
		*t = TrendDecreasing
	case "stable":
		*t = TrendStable
	default:
		return fmt.Errorf("unknown trend %q", text)
	}
	return nil
}

// ─── Category Forecast ──────────────────────────────────────────────────────

// CategoryForecast is one category's weekly forecast over the horizon.
// ConfidenceInterval is a scalar standard-deviation proxy applied to every
// week; Volatility is the coefficient of variation (std/mean) of history.
type CategoryForecast struct {
	Category           Category  `json:"category"`
	WeeklyPredictions  []float64 `json:"weekly_predictions"`
	ConfidenceInterval float64   `json:"confidence_interval"`
	Trend              Trend     `json:"trend"`
	Volatility         float64   `json:"volatility"`
}

// ZeroCategoryForecast returns the degraded all-zero forecast used when a
// category has no history or every model for it failed.
func ZeroCategoryForecast(c Category, horizon int) CategoryForecast {
	return CategoryForecast{
		Category:          c,
		WeeklyPredictions: make([]float64, horizon),
		Trend:             TrendStable,
	}
}

// ─── Forecast Point ─────────────────────────────────────────────────────────

// ForecastPoint is the balance projection for one future week. Immutable.
type ForecastPoint struct {
	Date              time.Time `json:"date"`
	PredictedBalance  float64   `json:"predicted_balance"`
	ConfidenceLower   float64   `json:"confidence_lower"`
	ConfidenceUpper   float64   `json:"confidence_upper"`
	PredictedInflows  float64   `json:"predicted_inflows"`
	PredictedOutflows float64   `json:"predicted_outflows"`
	NetCashFlow       float64   `json:"net_cash_flow"`
}

// ─── Forecast ───────────────────────────────────────────────────────────────

// Forecast is the complete balance trajectory produced by one engine call.
// Created once, owned by the caller thereafter.
type Forecast struct {
	ID             uuid.UUID       `json:"id"`
	CompanyName    string          `json:"company_name"`
	GeneratedAt    time.Time       `json:"generated_at"`
	CurrentBalance float64         `json:"current_balance"`
	Points         []ForecastPoint `json:"forecast_points"`
	ModelAccuracy  *float64        `json:"model_accuracy,omitempty"`
}

// FinalBalance returns the predicted balance at the end of the horizon,
// or the current balance for an empty horizon.
func (f Forecast) FinalBalance() float64 {
	if len(f.Points) == 0 {
		return f.CurrentBalance
	}
	return f.Points[len(f.Points)-1].PredictedBalance
}

// MinimumBalance returns the lowest predicted balance across the horizon.
func (f Forecast) MinimumBalance() float64 {
	if len(f.Points) == 0 {
		return f.CurrentBalance
	}
	min := f.Points[0].PredictedBalance
	for _, p := range f.Points[1:] {
		if p.PredictedBalance < min {
			min = p.PredictedBalance
		}
	}
	return min
}

// WeeksUntilZero returns the 1-based index of the first week whose
// predicted balance is non-positive, and false if cash never runs out.
func (f Forecast) WeeksUntilZero() (int, bool) {
	for i, p := range f.Points {
		if p.PredictedBalance <= 0 {
			return i + 1, true
		}
	}
	return 0, false
}

// AverageWeeklyBurn returns the mean weekly cash consumption over the
// horizon. Negative burn means the business is accumulating cash.
func (f Forecast) AverageWeeklyBurn() float64 {
	if len(f.Points) == 0 {
		return 0
	}
	var totalNet float64
	for _, p := range f.Points {
		totalNet += p.NetCashFlow
	}
	return -totalNet / float64(len(f.Points))
}

// ─── Scenario ───────────────────────────────────────────────────────────────

// Scenario is a what-if rerun of the engine with additive category
// adjustments, compared against a baseline it references but does not own.
type Scenario struct {
	ID               uuid.UUID            `json:"id"`
	Name             string               `json:"name"`
	Adjustments      map[Category]float64 `json:"adjustments"`
	Forecast         Forecast             `json:"forecast"`
	ImpactVsBaseline float64              `json:"impact_vs_baseline"`
}
