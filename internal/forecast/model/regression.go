package model

import (
	"fmt"
	"math"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/features"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Regularization ─────────────────────────────────────────────────────────

// Regularizer selects the penalty applied to the linear fit.
type Regularizer int

const (
	// RegularizerRidge applies an L2 penalty. The default.
	RegularizerRidge Regularizer = iota
	// RegularizerLasso applies an L1 penalty via coordinate descent.
	RegularizerLasso
	// RegularizerNone fits plain least squares.
	RegularizerNone
)

var regularizerNames = map[Regularizer]string{
	RegularizerRidge: "ridge",
	RegularizerLasso: "lasso",
	RegularizerNone:  "none",
}

func (r Regularizer) String() string {
	if s, ok := regularizerNames[r]; ok {
		return s
	}
	return fmt.Sprintf("regularizer(%d)", int(r))
}

// ─── Configuration ──────────────────────────────────────────────────────────

// FeatureRegressionConfig controls the linear model over engineered
// calendar and lag features.
type FeatureRegressionConfig struct {
	Regularizer Regularizer
	Alpha       float64 // penalty strength, default 1.0

	// Features defaults to features.DefaultConfig().
	Features features.Config

	// MinObservations is the shortest series Fit will accept.
	MinObservations int
}

// DefaultFeatureRegressionConfig is ridge with unit penalty.
func DefaultFeatureRegressionConfig() FeatureRegressionConfig {
	return FeatureRegressionConfig{
		Regularizer:     RegularizerRidge,
		Alpha:           1.0,
		Features:        features.DefaultConfig(),
		MinObservations: 12,
	}
}

// ─── Forecaster ─────────────────────────────────────────────────────────────

// FeatureRegression is a regularized linear forecaster over engineered
// features. Forecasting is recursive: each predicted week is appended to
// the working window, features are rebuilt, and the next week predicted
// from the refreshed last row.
type FeatureRegression struct {
	cfg   FeatureRegressionConfig
	state FitState

	coef        []float64 // [intercept, β…] on the standardized scale
	scaler      scaler
	residualStd float64
}

// NewFeatureRegression clamps invalid settings back to the defaults.
func NewFeatureRegression(cfg FeatureRegressionConfig) *FeatureRegression {
	def := DefaultFeatureRegressionConfig()
	if cfg.Alpha < 0 {
		cfg.Alpha = def.Alpha
	}
	if cfg.MinObservations < 8 {
		cfg.MinObservations = def.MinObservations
	}
	if len(cfg.Features.Lags) == 0 {
		cfg.Features = def.Features
	}
	if _, ok := regularizerNames[cfg.Regularizer]; !ok {
		cfg.Regularizer = def.Regularizer
	}
	return &FeatureRegression{cfg: cfg, state: unfittedState("not fitted")}
}

func (m *FeatureRegression) Kind() Kind         { return KindFeatureRegression }
func (m *FeatureRegression) FitState() FitState { return m.state }

// Fit engineers features over the series, standardizes columns, and solves
// for the coefficient vector under the configured penalty.
func (m *FeatureRegression) Fit(s timeseries.Series) error {
	if s.Len() < m.cfg.MinObservations {
		m.state = unfittedState(fmt.Sprintf("need %d observations, have %d", m.cfg.MinObservations, s.Len()))
		return domain.ErrSeriesTooShort
	}

	mat := features.Engineer(s, m.cfg.Features)
	x := mat.Rows
	y := s.Values

	m.scaler = fitScaler(x)
	xs := m.scaler.transform(x)

	var (
		coef []float64
		err  error
	)
	switch m.cfg.Regularizer {
	case RegularizerLasso:
		coef, err = lassoCoordinateDescent(xs, y, m.cfg.Alpha)
	case RegularizerNone:
		coef, err = leastSquares(xs, y, 0)
	default:
		coef, err = leastSquares(xs, y, m.cfg.Alpha)
	}
	if err != nil {
		m.state = unfittedState(err.Error())
		return err
	}
	m.coef = coef

	// In-sample residual spread drives the constant-width band.
	resid := make([]float64, len(y))
	for i := range y {
		resid[i] = y[i] - m.predictRow(xs[i])
	}
	m.residualStd = timeseries.PopStdDev(resid)
	m.state = fittedState()
	return nil
}

// Forecast predicts horizon weeks recursively, re-engineering features
// after each appended prediction. Points are floored at zero.
func (m *FeatureRegression) Forecast(s timeseries.Series, horizon int) (Bands, error) {
	if !m.state.Fitted {
		return Bands{}, domain.ErrNotFitted
	}
	if horizon <= 0 {
		return Bands{}, domain.ErrInvalidHorizon
	}

	buf := newArena(s, horizon)
	point := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		mat := features.Engineer(buf.current(), m.cfg.Features)
		row := m.scaler.transformRow(mat.LastRow())
		v := math.Max(0, m.predictRow(row))
		point[h] = v
		buf.push(v)
	}
	return residualBands(point, m.residualStd), nil
}

func (m *FeatureRegression) predictRow(standardized []float64) float64 {
	v := m.coef[0]
	for i, c := range m.coef[1:] {
		if i < len(standardized) {
			v += c * standardized[i]
		}
	}
	return v
}

// ─── Standardization ────────────────────────────────────────────────────────

// scaler holds per-column means and spreads. Zero-spread columns pass
// through centered only.
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(rows [][]float64) scaler {
	if len(rows) == 0 {
		return scaler{}
	}
	cols := len(rows[0])
	sc := scaler{mean: make([]float64, cols), std: make([]float64, cols)}
	n := float64(len(rows))
	for _, row := range rows {
		for j, v := range row {
			sc.mean[j] += v
		}
	}
	for j := range sc.mean {
		sc.mean[j] /= n
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - sc.mean[j]
			sc.std[j] += d * d
		}
	}
	for j := range sc.std {
		sc.std[j] = math.Sqrt(sc.std[j] / n)
		if sc.std[j] == 0 {
			sc.std[j] = 1
		}
	}
	return sc
}

func (sc scaler) transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = sc.transformRow(row)
	}
	return out
}

func (sc scaler) transformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j < len(sc.mean) {
			out[j] = (v - sc.mean[j]) / sc.std[j]
		} else {
			out[j] = v
		}
	}
	return out
}
