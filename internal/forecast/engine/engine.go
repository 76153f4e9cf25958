// Package engine orchestrates the full forecast pipeline: dataset
// validation and cleaning, per-category prediction, manual adjustments,
// and the weekly balance walk that turns category forecasts into a
// balance trajectory.
//
// Key concepts:
//   - Availability over completeness. Validation findings are advisory,
//     per-category model failures degrade that category to zeros, and a
//     Forecast is always produced for a non-empty dataset.
//   - Per-category work is independent and fans out across a bounded
//     worker pool; the walk that joins them is sequential.
//   - The engine is a pure function of (dataset, request, config): no
//     I/O, no cross-call state. Persistence and transport live in the
//     collaborator packages.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/ensemble"
	"github.com/fincast-io/fincast/internal/forecast/predictor"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// z80 is the normal quantile for the 80% two-sided band.
const z80 = 1.28

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds the engine-level knobs. The zero value is not useful; pass
// DefaultConfig() or a modified copy to New.
type Config struct {
	// DefaultHorizon is used when a request leaves WeeksAhead unset (<0).
	DefaultHorizon int

	// UseEnsemble routes categories with enough history through the
	// model ensemble instead of the statistical strategies.
	UseEnsemble bool

	// EnsembleMinWeeks is the shortest history the ensemble will be
	// offered; shorter categories always take the strategy path.
	EnsembleMinWeeks int

	// Workers bounds the per-category fitting pool. Clamped to the
	// category count.
	Workers int

	// Ensemble configures the combiner built for each routed category.
	Ensemble ensemble.Config

	// AccuracyMinWeeks is the history needed before the engine reports a
	// backtested accuracy at all.
	AccuracyMinWeeks int
}

// DefaultConfig mirrors a 12-week forecast with the strategy path only.
func DefaultConfig() Config {
	return Config{
		DefaultHorizon:   12,
		UseEnsemble:      false,
		EnsembleMinWeeks: 16,
		Workers:          4,
		Ensemble:         ensemble.DefaultConfig(),
		AccuracyMinWeeks: 26,
	}
}

// ─── Request ────────────────────────────────────────────────────────────────

// Request is one forecast job.
type Request struct {
	Dataset     domain.HistoricalDataset
	CompanyName string

	// WeeksAhead is the horizon. Zero yields an empty trajectory;
	// negative means "use the configured default".
	WeeksAhead int

	// Adjustments are additive weekly deltas keyed by category name or
	// enum key. Unknown keys are logged and skipped.
	Adjustments map[string]float64

	// Receivables, when present, routes AR collections through the aging
	// projector instead of its transaction history.
	Receivables predictor.AgingSchedule
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Metrics is the observation hook the engine reports into. Satisfied by
// observability.Metrics; nil-safe via noopMetrics.
type Metrics interface {
	ForecastGenerated(company string, horizon int, seconds float64)
	CategoryDegraded(category string)
}

type noopMetrics struct{}

func (noopMetrics) ForecastGenerated(string, int, float64) {}
func (noopMetrics) CategoryDegraded(string)                {}

// Engine generates forecasts and scenarios.
type Engine struct {
	cfg     Config
	log     zerolog.Logger
	metrics Metrics

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// New clamps invalid config values back to the defaults.
func New(cfg Config, log zerolog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.DefaultHorizon <= 0 {
		cfg.DefaultHorizon = def.DefaultHorizon
	}
	if cfg.EnsembleMinWeeks <= 0 {
		cfg.EnsembleMinWeeks = def.EnsembleMinWeeks
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if n := len(domain.Categories()); cfg.Workers > n {
		cfg.Workers = n
	}
	if cfg.AccuracyMinWeeks <= 0 {
		cfg.AccuracyMinWeeks = def.AccuracyMinWeeks
	}
	return &Engine{
		cfg:     cfg,
		log:     log,
		metrics: noopMetrics{},
		Now:     time.Now,
	}
}

// WithMetrics attaches the observation hook.
func (e *Engine) WithMetrics(m Metrics) *Engine {
	if m != nil {
		e.metrics = m
	}
	return e
}

// ─── Generation ─────────────────────────────────────────────────────────────

// Generate runs the full pipeline for one request.
func (e *Engine) Generate(ctx context.Context, req Request) (domain.Forecast, error) {
	started := e.Now()

	if len(req.Dataset.Transactions) == 0 {
		return domain.Forecast{}, domain.ErrEmptyDataset
	}
	horizon := req.WeeksAhead
	if horizon < 0 {
		horizon = e.cfg.DefaultHorizon
	}

	// Validation findings are advisories; the engine proceeds on the
	// cleaned dataset either way.
	for _, issue := range ValidateDataset(req.Dataset) {
		e.log.Warn().Str("company", req.CompanyName).Str("issue", issue).Msg("dataset validation")
	}
	dataset := cleanDataset(req.Dataset)

	currentBalance, _ := dataset.NetBalance().Float64()

	forecasts, err := e.categoryForecasts(ctx, dataset, req.Receivables, horizon)
	if err != nil {
		return domain.Forecast{}, err
	}
	e.applyAdjustments(forecasts, req.Adjustments)

	points := walkBalance(currentBalance, dataset.EndDate, forecasts, horizon)

	forecast := domain.Forecast{
		ID:             uuid.New(),
		CompanyName:    req.CompanyName,
		GeneratedAt:    e.Now(),
		CurrentBalance: currentBalance,
		Points:         points,
		ModelAccuracy:  e.backtestAccuracy(dataset),
	}

	e.metrics.ForecastGenerated(req.CompanyName, horizon, e.Now().Sub(started).Seconds())
	e.log.Info().
		Str("company", req.CompanyName).
		Int("horizon_weeks", horizon).
		Float64("final_balance", forecast.FinalBalance()).
		Msg("forecast generated")
	return forecast, nil
}

// GenerateScenario reruns the engine with adjustments layered on and
// reports the final-balance impact against the baseline.
func (e *Engine) GenerateScenario(ctx context.Context, baseline domain.Forecast, name string, adjustments map[string]float64, dataset domain.HistoricalDataset) (domain.Scenario, error) {
	req := Request{
		Dataset:     dataset,
		CompanyName: baseline.CompanyName,
		WeeksAhead:  len(baseline.Points),
		Adjustments: adjustments,
	}
	forecast, err := e.Generate(ctx, req)
	if err != nil {
		return domain.Scenario{}, err
	}

	resolved := make(map[domain.Category]float64, len(adjustments))
	for key, delta := range adjustments {
		if c, ok := domain.ParseCategory(key); ok {
			resolved[c] = delta
		}
	}

	return domain.Scenario{
		ID:               uuid.New(),
		Name:             name,
		Adjustments:      resolved,
		Forecast:         forecast,
		ImpactVsBaseline: forecast.FinalBalance() - baseline.FinalBalance(),
	}, nil
}

// ─── Per-Category Forecasts ─────────────────────────────────────────────────

// categoryForecasts fans the independent per-category work out across the
// bounded worker pool and joins the results in category order.
func (e *Engine) categoryForecasts(ctx context.Context, dataset domain.HistoricalDataset, receivables predictor.AgingSchedule, horizon int) (map[domain.Category]domain.CategoryForecast, error) {
	categories := domain.Categories()
	results := make([]domain.CategoryForecast, len(categories))

	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup
	for i, c := range categories {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c domain.Category) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.forecastCategory(dataset, receivables, c, horizon)
		}(i, c)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[domain.Category]domain.CategoryForecast, len(categories))
	for i, c := range categories {
		out[c] = results[i]
	}
	return out, nil
}

// forecastCategory produces one category's forecast, degrading to the
// zero forecast instead of failing.
func (e *Engine) forecastCategory(dataset domain.HistoricalDataset, receivables predictor.AgingSchedule, c domain.Category, horizon int) domain.CategoryForecast {
	if c == domain.ARCollections && receivables != nil {
		fc, err := predictor.NewAgingProjector(receivables).Project(horizon)
		if err == nil {
			return fc
		}
		e.log.Debug().Err(err).Msg("aging projection failed")
	}

	series := timeseries.Aggregate(dataset, c)
	if series.Len() == 0 {
		return domain.ZeroCategoryForecast(c, horizon)
	}

	if e.cfg.UseEnsemble && series.Len() >= e.cfg.EnsembleMinWeeks {
		if fc, ok := e.ensembleForecast(series, horizon); ok {
			return fc
		}
		// Ensemble could not serve this category; the strategy path is
		// the degradation target, not zeros.
	}

	fc, err := predictor.New(series).Predict(horizon)
	if err != nil {
		e.metrics.CategoryDegraded(c.String())
		e.log.Debug().Stringer("category", c).Err(err).Msg("category degraded to zero forecast")
		return domain.ZeroCategoryForecast(c, horizon)
	}
	return fc
}

// ensembleForecast routes one series through the model ensemble and
// collapses the band into the scalar interval the walk expects.
func (e *Engine) ensembleForecast(series timeseries.Series, horizon int) (domain.CategoryForecast, bool) {
	comb := ensemble.New(e.cfg.Ensemble, e.log)
	if err := comb.Fit(series); err != nil {
		e.log.Debug().Stringer("category", series.Category).Err(err).Msg("ensemble fit failed")
		return domain.CategoryForecast{}, false
	}
	res, err := comb.Forecast(series, horizon)
	if err != nil {
		e.log.Debug().Stringer("category", series.Category).Err(err).Msg("ensemble forecast failed")
		return domain.CategoryForecast{}, false
	}

	// Mean half-width, mapped back to a one-sigma interval.
	var halfWidth float64
	for i := range res.Combined.Point {
		halfWidth += (res.Combined.Upper[i] - res.Combined.Lower[i]) / 2
	}
	halfWidth /= float64(horizon)

	preds := make([]float64, horizon)
	for i, v := range res.Combined.Point {
		preds[i] = math.Max(0, v)
	}

	return domain.CategoryForecast{
		Category:           series.Category,
		WeeklyPredictions:  preds,
		ConfidenceInterval: halfWidth / z80,
		Trend:              predictor.TrendOf(series.Values),
		Volatility:         timeseries.Volatility(series.Values),
	}, true
}

// ─── Adjustments ────────────────────────────────────────────────────────────

// applyAdjustments adds each delta to every weekly prediction of its
// matched category. Keys match by canonical name or enum key.
func (e *Engine) applyAdjustments(forecasts map[domain.Category]domain.CategoryForecast, adjustments map[string]float64) {
	for key, delta := range adjustments {
		c, ok := domain.ParseCategory(key)
		if !ok {
			e.log.Warn().Str("key", key).Msg("adjustment for unknown category skipped")
			continue
		}
		fc := forecasts[c]
		for i := range fc.WeeklyPredictions {
			fc.WeeklyPredictions[i] += delta
		}
		forecasts[c] = fc
	}
}

// ─── Balance Walk ───────────────────────────────────────────────────────────

// walkBalance turns the per-category forecasts into the weekly balance
// trajectory. Confidence combines across categories as root sum of
// squares, which assumes cross-category independence; that assumption is
// part of the model, not an accident.
func walkBalance(currentBalance float64, endDate time.Time, forecasts map[domain.Category]domain.CategoryForecast, horizon int) []domain.ForecastPoint {
	// Sums run in category declaration order so identical inputs float-add
	// in the same order and produce bit-identical trajectories.
	categories := domain.Categories()

	var combinedVar float64
	for _, c := range categories {
		ci := forecasts[c].ConfidenceInterval
		combinedVar += ci * ci
	}
	combinedStd := math.Sqrt(combinedVar)

	points := make([]domain.ForecastPoint, 0, horizon)
	balance := currentBalance
	for week := 0; week < horizon; week++ {
		var inflows, outflows float64
		for _, c := range categories {
			v := weekValue(forecasts[c], week)
			if c.Direction() == domain.Inflow {
				inflows += v
			} else {
				outflows += v
			}
		}
		net := inflows - outflows
		balance += net
		points = append(points, domain.ForecastPoint{
			Date:              endDate.AddDate(0, 0, 1+7*week),
			PredictedBalance:  balance,
			ConfidenceLower:   balance - z80*combinedStd,
			ConfidenceUpper:   balance + z80*combinedStd,
			PredictedInflows:  inflows,
			PredictedOutflows: outflows,
			NetCashFlow:       net,
		})
	}
	return points
}

func weekValue(fc domain.CategoryForecast, week int) float64 {
	if week < len(fc.WeeklyPredictions) {
		return fc.WeeklyPredictions[week]
	}
	return 0
}

// ─── Accuracy ───────────────────────────────────────────────────────────────

// backtestAccuracy is the documented data-volume heuristic: with at least
// 26 weeks of history, estimated accuracy scales with how much of a full
// year the dataset covers, capped at 0.93. It is a proxy, not a true
// held-out comparison.
func (e *Engine) backtestAccuracy(dataset domain.HistoricalDataset) *float64 {
	spanDays := dataset.SpanDays()
	if spanDays/7 < e.cfg.AccuracyMinWeeks {
		return nil
	}
	volume := math.Min(1, float64(spanDays)/365)
	acc := math.Min(0.93, 0.75+volume*0.15)
	return &acc
}
