package model

import (
	"fmt"
	"math"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── ARIMA Orders ───────────────────────────────────────────────────────────

// Order is an ARIMA(p,d,q) specification.
type Order struct {
	P int // autoregressive lags
	D int // differencing passes
	Q int // moving-average lags
}

func (o Order) String() string { return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q) }

// ─── Configuration ──────────────────────────────────────────────────────────

// AutoRegressiveConfig bounds the order grid searched during Fit.
type AutoRegressiveConfig struct {
	MaxP int // inclusive upper bound on p, default 3
	MaxD int // inclusive upper bound on d, default 2
	MaxQ int // inclusive upper bound on q, default 3

	// MinObservations is the shortest series Fit will accept.
	MinObservations int
}

// DefaultAutoRegressiveConfig mirrors the conventional small-grid search.
func DefaultAutoRegressiveConfig() AutoRegressiveConfig {
	return AutoRegressiveConfig{MaxP: 3, MaxD: 2, MaxQ: 3, MinObservations: 12}
}

// ─── Forecaster ─────────────────────────────────────────────────────────────

// AutoRegressive is an ARIMA forecaster. Fit grid-searches (p,d,q) over the
// configured bounds, scoring each candidate by AIC, and keeps the best
// fitted model. Candidates that fail to estimate are skipped rather than
// failing the whole fit.
//
// Estimation is two-stage conditional least squares (Hannan-Rissanen): a
// long autoregression proxies the unobserved shocks, then AR and MA
// coefficients are estimated jointly by OLS against those proxy residuals.
type AutoRegressive struct {
	cfg   AutoRegressiveConfig
	state FitState

	order    Order
	arCoef   []float64 // φ, length p
	maCoef   []float64 // θ, length q
	constant float64
	sigma2   float64 // residual variance of the winning fit
}

// NewAutoRegressive clamps nonsensical bounds back to the defaults.
func NewAutoRegressive(cfg AutoRegressiveConfig) *AutoRegressive {
	def := DefaultAutoRegressiveConfig()
	if cfg.MaxP < 0 || cfg.MaxP > 8 {
		cfg.MaxP = def.MaxP
	}
	if cfg.MaxD < 0 || cfg.MaxD > 2 {
		cfg.MaxD = def.MaxD
	}
	if cfg.MaxQ < 0 || cfg.MaxQ > 8 {
		cfg.MaxQ = def.MaxQ
	}
	if cfg.MinObservations < 8 {
		cfg.MinObservations = def.MinObservations
	}
	return &AutoRegressive{cfg: cfg, state: unfittedState("not fitted")}
}

func (m *AutoRegressive) Kind() Kind         { return KindAutoRegressive }
func (m *AutoRegressive) FitState() FitState { return m.state }

// Fit selects the AIC-minimizing order. Ties break toward the smaller
// order in ascending (p,d,q) scan order, since only a strictly better
// score displaces the incumbent.
func (m *AutoRegressive) Fit(s timeseries.Series) error {
	if s.Len() < m.cfg.MinObservations {
		m.state = unfittedState(fmt.Sprintf("need %d observations, have %d", m.cfg.MinObservations, s.Len()))
		return domain.ErrSeriesTooShort
	}

	bestAIC := math.Inf(1)
	found := false
	for p := 0; p <= m.cfg.MaxP; p++ {
		for d := 0; d <= m.cfg.MaxD; d++ {
			for q := 0; q <= m.cfg.MaxQ; q++ {
				if p == 0 && q == 0 {
					continue
				}
				fit, err := estimateARMA(s.Values, Order{P: p, D: d, Q: q})
				if err != nil {
					continue
				}
				if fit.aic < bestAIC {
					bestAIC = fit.aic
					m.order = Order{P: p, D: d, Q: q}
					m.arCoef = fit.ar
					m.maCoef = fit.ma
					m.constant = fit.constant
					m.sigma2 = fit.sigma2
					found = true
				}
			}
		}
	}
	if !found {
		m.state = unfittedState("no order converged")
		return domain.ErrNoConvergence
	}
	m.state = fittedState()
	return nil
}

// Order reports the order selected by the last successful Fit.
func (m *AutoRegressive) Order() Order { return m.order }

// Forecast produces horizon steps ahead with an 80% band from the
// psi-weight forecast variance.
func (m *AutoRegressive) Forecast(s timeseries.Series, horizon int) (Bands, error) {
	if !m.state.Fitted {
		return Bands{}, domain.ErrNotFitted
	}
	if horizon <= 0 {
		return Bands{}, domain.ErrInvalidHorizon
	}

	diffed, heads := difference(s.Values, m.order.D)

	// Rebuild in-sample shocks so the MA terms have a history to recurse
	// from. Shocks before the usable window are taken as zero.
	resid := reconstructShocks(diffed, m.arCoef, m.maCoef, m.constant)

	// Recursive point forecast on the differenced scale. Future shocks are
	// their expectation, zero.
	hist := append([]float64(nil), diffed...)
	shocks := append([]float64(nil), resid...)
	point := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		v := m.constant
		for i, phi := range m.arCoef {
			idx := len(hist) - 1 - i
			if idx >= 0 {
				v += phi * hist[idx]
			}
		}
		for i, theta := range m.maCoef {
			idx := len(shocks) - 1 - i
			if idx >= 0 {
				v += theta * shocks[idx]
			}
		}
		point[h] = v
		hist = append(hist, v)
		shocks = append(shocks, 0)
	}

	// Undo differencing.
	point = integrate(point, heads)

	// Forecast standard errors from the psi weights of the integrated
	// process: phi*(B) = phi(B)(1-B)^d.
	psi := psiWeights(integratedAR(m.arCoef, m.order.D), m.maCoef, horizon)
	se := make([]float64, horizon)
	cum := 0.0
	for h := 0; h < horizon; h++ {
		cum += psi[h] * psi[h]
		se[h] = math.Sqrt(m.sigma2 * cum)
	}

	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for h := range point {
		lower[h] = math.Max(0, point[h]-z80*se[h])
		upper[h] = point[h] + z80*se[h]
	}
	return Bands{Point: point, Lower: lower, Upper: upper}, nil
}

// ─── Estimation ─────────────────────────────────────────────────────────────

type armaFit struct {
	ar       []float64
	ma       []float64
	constant float64
	sigma2   float64
	aic      float64
}

// estimateARMA fits ARMA(p,q) to the d-times differenced series by
// Hannan-Rissanen two-stage conditional least squares.
func estimateARMA(values []float64, o Order) (armaFit, error) {
	diffed, _ := difference(values, o.D)
	n := len(diffed)

	// Stage one: a long AR whose residuals proxy the shocks.
	longLag := o.P + o.Q + 2
	if longLag > n/3 {
		longLag = n / 3
	}
	if longLag < 1 {
		longLag = 1
	}
	minRows := o.P + o.Q + 3
	start := longLag
	if o.P > start {
		start = o.P
	}
	if n-start < minRows {
		return armaFit{}, domain.ErrSeriesTooShort
	}

	shocks := make([]float64, n)
	if o.Q > 0 {
		longCoef, err := fitAR(diffed, longLag)
		if err != nil {
			return armaFit{}, err
		}
		for t := longLag; t < n; t++ {
			pred := longCoef[0]
			for i := 0; i < longLag; i++ {
				pred += longCoef[i+1] * diffed[t-1-i]
			}
			shocks[t] = diffed[t] - pred
		}
	}

	// Stage two: OLS of x_t on [1, p lags of x, q lags of the proxy shocks].
	offset := start
	if o.Q > 0 && longLag+o.Q > offset {
		offset = longLag + o.Q
	}
	rows := n - offset
	if rows < minRows {
		return armaFit{}, domain.ErrSeriesTooShort
	}
	x := make([][]float64, rows)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := offset + r
		feat := make([]float64, o.P+o.Q)
		for i := 0; i < o.P; i++ {
			feat[i] = diffed[t-1-i]
		}
		for i := 0; i < o.Q; i++ {
			feat[o.P+i] = shocks[t-1-i]
		}
		x[r] = feat
		y[r] = diffed[t]
	}

	coef, err := leastSquares(x, y, 0)
	if err != nil {
		return armaFit{}, err
	}

	fit := armaFit{
		constant: coef[0],
		ar:       append([]float64(nil), coef[1:1+o.P]...),
		ma:       append([]float64(nil), coef[1+o.P:]...),
	}

	// Residual variance and AIC on the fitted window.
	var rss float64
	for r := 0; r < rows; r++ {
		pred := fit.constant
		for i, c := range fit.ar {
			pred += c * x[r][i]
		}
		for i, c := range fit.ma {
			pred += c * x[r][o.P+i]
		}
		e := y[r] - pred
		rss += e * e
	}
	fit.sigma2 = rss / float64(rows)
	if fit.sigma2 <= 0 {
		fit.sigma2 = 1e-12
	}
	k := float64(o.P + o.Q + 1)
	fit.aic = float64(rows)*math.Log(fit.sigma2) + 2*k
	if math.IsNaN(fit.aic) || math.IsInf(fit.aic, 0) {
		return armaFit{}, domain.ErrNoConvergence
	}
	return fit, nil
}

// fitAR estimates a pure AR(order) by OLS, returning [constant, φ…].
func fitAR(values []float64, order int) ([]float64, error) {
	n := len(values)
	rows := n - order
	if rows < order+2 {
		return nil, domain.ErrSeriesTooShort
	}
	x := make([][]float64, rows)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := order + r
		feat := make([]float64, order)
		for i := 0; i < order; i++ {
			feat[i] = values[t-1-i]
		}
		x[r] = feat
		y[r] = values[t]
	}
	return leastSquares(x, y, 0)
}

// ─── Differencing And Psi Weights ───────────────────────────────────────────

// difference applies d first-difference passes, recording the last value of
// each pass so integrate can undo them.
func difference(values []float64, d int) (diffed, heads []float64) {
	diffed = append([]float64(nil), values...)
	heads = make([]float64, 0, d)
	for pass := 0; pass < d; pass++ {
		if len(diffed) < 2 {
			break
		}
		heads = append(heads, diffed[len(diffed)-1])
		next := make([]float64, len(diffed)-1)
		for i := range next {
			next[i] = diffed[i+1] - diffed[i]
		}
		diffed = next
	}
	return diffed, heads
}

// integrate reverses the difference passes on a forecast path.
func integrate(path []float64, heads []float64) []float64 {
	out := append([]float64(nil), path...)
	for pass := len(heads) - 1; pass >= 0; pass-- {
		prev := heads[pass]
		for i := range out {
			out[i] += prev
			prev = out[i]
		}
	}
	return out
}

// integratedAR expands phi*(B) = phi(B)(1-B)^d into a plain AR polynomial
// so psi weights can be computed on the undifferenced scale.
func integratedAR(ar []float64, d int) []float64 {
	// Coefficients of phi(B) as polynomial in B: [1, -φ1, -φ2, …].
	poly := make([]float64, len(ar)+1)
	poly[0] = 1
	for i, c := range ar {
		poly[i+1] = -c
	}
	for pass := 0; pass < d; pass++ {
		// Multiply by (1 - B).
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}
	// Back to AR coefficient convention.
	out := make([]float64, len(poly)-1)
	for i := range out {
		out[i] = -poly[i+1]
	}
	return out
}

// psiWeights computes the first h MA(∞) weights of an ARMA process via the
// standard recursion psi_j = theta_j + Σ phi_i·psi_{j-i}.
func psiWeights(ar, ma []float64, h int) []float64 {
	psi := make([]float64, h)
	for j := 0; j < h; j++ {
		v := 0.0
		if j == 0 {
			v = 1
		} else {
			if j-1 < len(ma) {
				v = ma[j-1]
			}
			for i, phi := range ar {
				if k := j - 1 - i; k >= 0 {
					v += phi * psi[k]
				}
			}
		}
		psi[j] = v
	}
	return psi
}

// reconstructShocks replays the ARMA recursion over the fitted window to
// recover in-sample residuals for the forecast recursion.
func reconstructShocks(values, ar, ma []float64, constant float64) []float64 {
	shocks := make([]float64, len(values))
	for t := range values {
		pred := constant
		for i, phi := range ar {
			if t-1-i >= 0 {
				pred += phi * values[t-1-i]
			}
		}
		for i, theta := range ma {
			if t-1-i >= 0 {
				pred += theta * shocks[t-1-i]
			}
		}
		shocks[t] = values[t] - pred
	}
	return shocks
}
