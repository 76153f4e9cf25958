// Package predictor produces per-category weekly forecasts through
// lightweight statistical strategies, independent of the heavier ensemble
// models.
//
// Key concepts:
//   - Strategy resolution happens once, at construction, from the shape of
//     the history: short histories average, fixed costs take the median,
//     strongly sloped series extrapolate a fitted line, and everything
//     else runs damped exponential smoothing.
//   - Every strategy emits the same shape: weekly points, a confidence
//     interval, a trend label, and a volatility score.
//   - Accounts-receivable collections are special-cased by the aging
//     projector in this package; ordinary categories never see it.
package predictor

import (
	"fmt"
	"math"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Strategy ───────────────────────────────────────────────────────────────

// Strategy identifies the prediction method resolved for a series.
type Strategy int

const (
	// StrategySimpleAverage repeats the historical mean. Used when fewer
	// than four weekly periods exist.
	StrategySimpleAverage Strategy = iota
	// StrategyFixedCost repeats the historical median with a tight band.
	// Used for contractually stable categories like rent and insurance.
	StrategyFixedCost
	// StrategyTrend extrapolates a least-squares line. Used when the
	// relative slope exceeds the trend threshold.
	StrategyTrend
	// StrategySmoothing runs damped additive exponential smoothing.
	StrategySmoothing
)

func (st Strategy) String() string {
	switch st {
	case StrategySimpleAverage:
		return "simple_average"
	case StrategyFixedCost:
		return "fixed_cost"
	case StrategyTrend:
		return "trend"
	case StrategySmoothing:
		return "smoothing"
	default:
		return fmt.Sprintf("strategy(%d)", int(st))
	}
}

const (
	// minPeriodsForModel is the shortest history that gets anything
	// beyond the simple average.
	minPeriodsForModel = 4

	// trendThreshold is the relative slope above which a series is
	// treated as trending.
	trendThreshold = 0.05

	// trendLabelMargin is the slope-to-mean band within which the trend
	// label stays stable.
	trendLabelMargin = 0.01
)

// ─── Predictor ──────────────────────────────────────────────────────────────

// Predictor forecasts one category's weekly series with the strategy
// resolved from that series at construction.
type Predictor struct {
	series   timeseries.Series
	strategy Strategy

	// line fit, populated only for StrategyTrend
	slope     float64
	intercept float64
}

// New inspects the series once and locks in a strategy.
func New(s timeseries.Series) *Predictor {
	p := &Predictor{series: s}
	switch {
	case s.Len() < minPeriodsForModel:
		p.strategy = StrategySimpleAverage
	case s.Category.IsFixedCost():
		p.strategy = StrategyFixedCost
	default:
		p.slope, p.intercept = fitLine(s.Values)
		mean := timeseries.Mean(s.Values)
		if mean != 0 && math.Abs(p.slope/mean) > trendThreshold {
			p.strategy = StrategyTrend
		} else {
			p.strategy = StrategySmoothing
		}
	}
	return p
}

// Strategy reports the resolved strategy.
func (p *Predictor) Strategy() Strategy { return p.strategy }

// Predict produces the category forecast for the horizon. Empty histories
// yield the zero forecast rather than an error; absence of data is an
// answer here, not a failure.
func (p *Predictor) Predict(horizon int) (domain.CategoryForecast, error) {
	if horizon <= 0 {
		return domain.CategoryForecast{}, domain.ErrInvalidHorizon
	}
	if p.series.Len() == 0 {
		return domain.ZeroCategoryForecast(p.series.Category, horizon), nil
	}

	switch p.strategy {
	case StrategySimpleAverage:
		return p.simpleAverage(horizon), nil
	case StrategyFixedCost:
		return p.fixedCost(horizon), nil
	case StrategyTrend:
		return p.trendLine(horizon), nil
	default:
		return p.smoothed(horizon), nil
	}
}

// ─── Strategies ─────────────────────────────────────────────────────────────

func (p *Predictor) simpleAverage(horizon int) domain.CategoryForecast {
	mean := timeseries.Mean(p.series.Values)
	std := timeseries.StdDev(p.series.Values)
	return domain.CategoryForecast{
		Category:           p.series.Category,
		WeeklyPredictions:  repeat(mean, horizon),
		ConfidenceInterval: std,
		Trend:              domain.TrendStable,
		Volatility:         timeseries.Volatility(p.series.Values),
	}
}

func (p *Predictor) fixedCost(horizon int) domain.CategoryForecast {
	median := timeseries.Median(p.series.Values)
	std := timeseries.StdDev(p.series.Values)
	return domain.CategoryForecast{
		Category:           p.series.Category,
		WeeklyPredictions:  repeat(median, horizon),
		ConfidenceInterval: 0.5 * std,
		Trend:              domain.TrendStable,
		Volatility:         0.1,
	}
}

func (p *Predictor) trendLine(horizon int) domain.CategoryForecast {
	n := p.series.Len()
	preds := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		preds[h] = math.Max(0, p.intercept+p.slope*float64(n+h))
	}

	// Residual spread of the fitted line is the band.
	resid := make([]float64, n)
	for i, v := range p.series.Values {
		resid[i] = v - (p.intercept + p.slope*float64(i))
	}

	mean := timeseries.Mean(p.series.Values)
	trend := domain.TrendStable
	if mean != 0 {
		switch {
		case p.slope > trendLabelMargin*mean:
			trend = domain.TrendIncreasing
		case p.slope < -trendLabelMargin*mean:
			trend = domain.TrendDecreasing
		}
	}

	return domain.CategoryForecast{
		Category:           p.series.Category,
		WeeklyPredictions:  preds,
		ConfidenceInterval: timeseries.StdDev(resid),
		Trend:              trend,
		Volatility:         timeseries.Volatility(p.series.Values),
	}
}

func (p *Predictor) smoothed(horizon int) domain.CategoryForecast {
	preds, residStd, ok := holtForecast(p.series.Values, horizon)
	if !ok {
		preds = blendTowardMean(p.series.Values, horizon)
		residStd = timeseries.StdDev(p.series.Values)
	}
	for i := range preds {
		preds[i] = math.Max(0, preds[i])
	}
	return domain.CategoryForecast{
		Category:           p.series.Category,
		WeeklyPredictions:  preds,
		ConfidenceInterval: residStd,
		Trend:              TrendOf(p.series.Values),
		Volatility:         timeseries.Volatility(p.series.Values),
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// fitLine returns the least-squares slope and intercept against the
// 0-based time index.
func fitLine(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, timeseries.Mean(values)
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// blendTowardMean emits the last observed value, then walks it toward the
// historical mean, 30% of the gap per week. The smoothing fallback for
// pathological series.
func blendTowardMean(values []float64, horizon int) []float64 {
	mean := timeseries.Mean(values)
	last := values[len(values)-1]
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		out[h] = last
		last = 0.3*last + 0.7*mean
	}
	return out
}

// TrendOf classifies a series by comparing the last four weeks against
// the first four: beyond ±10% is a trend, inside it is stable.
func TrendOf(values []float64) domain.Trend {
	if len(values) < 8 {
		return domain.TrendStable
	}
	early := timeseries.Mean(values[:4])
	late := timeseries.Mean(values[len(values)-4:])
	switch {
	case late > 1.1*early:
		return domain.TrendIncreasing
	case late < 0.9*early:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
