// Package ensemble combines the base forecasters into a single weighted
// prediction per category.
//
// Key concepts:
//   - Every enabled model is fitted independently; one failure never sinks
//     the ensemble. The combiner is usable as long as at least one model
//     fitted.
//   - Weights come from a walk-forward holdout when the series is long
//     enough: each model forecasts the last few observed weeks, and its
//     weight is the normalized inverse of its mean absolute error there.
//   - When the holdout is infeasible the combiner falls back to the
//     configured static weights.
package ensemble

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/model"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls which models participate and how holdout weighting runs.
type Config struct {
	// Enabled lists the participating model kinds. Empty means all three.
	Enabled []model.Kind

	// StaticWeights is the fallback when adaptive weighting is
	// infeasible. Missing kinds get zero; weights are normalized on use.
	StaticWeights map[model.Kind]float64

	// HoldoutWeeks is the walk-forward test window, default 4.
	HoldoutWeeks int

	// MinTrainWeeks is the shortest training remainder that still
	// justifies a holdout, default 12.
	MinTrainWeeks int
}

// DefaultConfig enables all models with near-equal static fallback weights.
func DefaultConfig() Config {
	return Config{
		Enabled: model.Kinds(),
		StaticWeights: map[model.Kind]float64{
			model.KindAutoRegressive:    0.33,
			model.KindFeatureRegression: 0.33,
			model.KindGradientBoosted:   0.34,
		},
		HoldoutWeeks:  4,
		MinTrainWeeks: 12,
	}
}

// ─── Combiner ───────────────────────────────────────────────────────────────

// Result carries the combined forecast plus the per-model detail behind it.
type Result struct {
	Combined model.Bands                `json:"combined"`
	PerModel map[model.Kind]model.Bands `json:"per_model"`
	Weights  map[model.Kind]float64     `json:"weights"`
	Adaptive bool                       `json:"adaptive"` // true when weights came from the holdout
}

// Combiner fits the enabled base models and blends their forecasts.
// Construction resolves the model roster once; Fit and Forecast never
// rebuild it.
type Combiner struct {
	cfg    Config
	log    zerolog.Logger
	models []model.Forecaster
}

// New builds a combiner with a fresh model per enabled kind. Invalid
// config values are clamped back to the defaults.
func New(cfg Config, log zerolog.Logger) *Combiner {
	def := DefaultConfig()
	if len(cfg.Enabled) == 0 {
		cfg.Enabled = def.Enabled
	}
	if len(cfg.StaticWeights) == 0 {
		cfg.StaticWeights = def.StaticWeights
	}
	if cfg.HoldoutWeeks <= 0 {
		cfg.HoldoutWeeks = def.HoldoutWeeks
	}
	if cfg.MinTrainWeeks <= 0 {
		cfg.MinTrainWeeks = def.MinTrainWeeks
	}

	c := &Combiner{cfg: cfg, log: log}
	for _, k := range cfg.Enabled {
		c.models = append(c.models, newModel(k))
	}
	return c
}

func newModel(k model.Kind) model.Forecaster {
	switch k {
	case model.KindAutoRegressive:
		return model.NewAutoRegressive(model.DefaultAutoRegressiveConfig())
	case model.KindGradientBoosted:
		return model.NewGradientBoosted(model.DefaultGradientBoostedConfig())
	default:
		return model.NewFeatureRegression(model.DefaultFeatureRegressionConfig())
	}
}

// Fit trains every enabled model. A model that fails to fit is logged and
// skipped at forecast time; Fit errors only when none succeeded.
func (c *Combiner) Fit(s timeseries.Series) error {
	fitted := 0
	for _, m := range c.models {
		if err := m.Fit(s); err != nil {
			c.log.Debug().
				Stringer("model", m.Kind()).
				Stringer("category", s.Category).
				Err(err).
				Msg("base model fit failed")
			continue
		}
		fitted++
	}
	if fitted == 0 {
		return fmt.Errorf("category %s: %w", s.Category, domain.ErrNoModelsFitted)
	}
	return nil
}

// Fitted reports how many base models are currently usable.
func (c *Combiner) Fitted() int {
	n := 0
	for _, m := range c.models {
		if m.FitState().Fitted {
			n++
		}
	}
	return n
}

// Forecast blends the fitted models' forecasts under adaptive or static
// weights. With a single fitted model its weight is exactly 1 and the
// combined forecast equals its own.
func (c *Combiner) Forecast(s timeseries.Series, horizon int) (Result, error) {
	if horizon <= 0 {
		return Result{}, domain.ErrInvalidHorizon
	}

	perModel := make(map[model.Kind]model.Bands)
	for _, m := range c.models {
		if !m.FitState().Fitted {
			continue
		}
		b, err := m.Forecast(s, horizon)
		if err != nil {
			c.log.Debug().Stringer("model", m.Kind()).Err(err).Msg("base model forecast failed")
			continue
		}
		perModel[m.Kind()] = b
	}
	if len(perModel) == 0 {
		return Result{}, domain.ErrNoModelsFitted
	}

	weights, adaptive := c.weigh(s, perModel)

	combined := model.Bands{
		Point: make([]float64, horizon),
		Lower: make([]float64, horizon),
		Upper: make([]float64, horizon),
	}
	// Kind declaration order keeps the float summation deterministic.
	for _, kind := range model.Kinds() {
		b, ok := perModel[kind]
		if !ok {
			continue
		}
		w := weights[kind]
		for i := 0; i < horizon; i++ {
			combined.Point[i] += w * b.Point[i]
			combined.Lower[i] += w * b.Lower[i]
			combined.Upper[i] += w * b.Upper[i]
		}
	}

	return Result{
		Combined: combined,
		PerModel: perModel,
		Weights:  weights,
		Adaptive: adaptive,
	}, nil
}

// ─── Weighting ──────────────────────────────────────────────────────────────

// weigh returns normalized per-kind weights over the fitted models, from
// the walk-forward holdout when the series allows it, otherwise from the
// static table.
func (c *Combiner) weigh(s timeseries.Series, fitted map[model.Kind]model.Bands) (map[model.Kind]float64, bool) {
	if w := c.holdoutWeights(s, fitted); w != nil {
		return w, true
	}
	return c.staticWeights(fitted), false
}

// holdoutWeights refits each model on the series minus the last
// HoldoutWeeks, scores it on those held-out weeks, and weights by inverse
// mean absolute error. Returns nil when the holdout is infeasible.
func (c *Combiner) holdoutWeights(s timeseries.Series, fitted map[model.Kind]model.Bands) map[model.Kind]float64 {
	test := c.cfg.HoldoutWeeks
	if s.Len() < test+c.cfg.MinTrainWeeks {
		return nil
	}

	train := s.Slice(s.Len() - test)
	actual := s.Values[s.Len()-test:]

	inv := make(map[model.Kind]float64)
	var total float64
	for _, kind := range model.Kinds() {
		if _, ok := fitted[kind]; !ok {
			continue
		}
		m := newModel(kind)
		if err := m.Fit(train); err != nil {
			continue
		}
		b, err := m.Forecast(train, test)
		if err != nil {
			continue
		}
		mae := timeseries.MeanAbsError(actual, b.Point)
		w := 1 / (mae + 1e-10)
		inv[kind] = w
		total += w
	}
	if len(inv) == 0 || total == 0 {
		return nil
	}
	for kind := range inv {
		inv[kind] /= total
	}
	// Models that fitted on the full series but failed the holdout refit
	// keep a zero weight rather than dropping out of the map.
	for kind := range fitted {
		if _, ok := inv[kind]; !ok {
			inv[kind] = 0
		}
	}
	return inv
}

// staticWeights normalizes the configured table over the fitted models.
func (c *Combiner) staticWeights(fitted map[model.Kind]model.Bands) map[model.Kind]float64 {
	out := make(map[model.Kind]float64, len(fitted))
	var total float64
	for _, kind := range model.Kinds() {
		if _, ok := fitted[kind]; !ok {
			continue
		}
		w := c.cfg.StaticWeights[kind]
		out[kind] = w
		total += w
	}
	if total == 0 {
		// Nothing configured for the fitted set; fall back to equal.
		for kind := range out {
			out[kind] = 1 / float64(len(out))
		}
		return out
	}
	for kind := range out {
		out[kind] /= total
	}
	return out
}
