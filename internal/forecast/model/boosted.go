package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/features"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// GradientBoostedConfig controls the boosted-tree forecaster.
type GradientBoostedConfig struct {
	Estimators   int     // number of boosting rounds, default 100
	MaxDepth     int     // tree depth limit, default 5
	LearningRate float64 // shrinkage per round, default 0.1
	MinLeaf      int     // minimum samples per leaf, default 2

	// Features defaults to features.ExtendedConfig(); the tree model gets
	// the wider feature set since it can exploit interactions.
	Features features.Config

	// MinObservations is the shortest series Fit will accept.
	MinObservations int
}

// DefaultGradientBoostedConfig matches a conventional small-data setup.
func DefaultGradientBoostedConfig() GradientBoostedConfig {
	return GradientBoostedConfig{
		Estimators:      100,
		MaxDepth:        5,
		LearningRate:    0.1,
		MinLeaf:         2,
		Features:        features.ExtendedConfig(),
		MinObservations: 12,
	}
}

// ─── Forecaster ─────────────────────────────────────────────────────────────

// GradientBoosted fits an additive sequence of depth-limited regression
// trees to the residuals of the running prediction. Squared-error loss, so
// each round fits the current residual directly.
type GradientBoosted struct {
	cfg   GradientBoostedConfig
	state FitState

	base        float64 // initial prediction, the target mean
	trees       []*regressionTree
	residualStd float64
}

// NewGradientBoosted clamps invalid settings back to the defaults.
func NewGradientBoosted(cfg GradientBoostedConfig) *GradientBoosted {
	def := DefaultGradientBoostedConfig()
	if cfg.Estimators <= 0 || cfg.Estimators > 2000 {
		cfg.Estimators = def.Estimators
	}
	if cfg.MaxDepth <= 0 || cfg.MaxDepth > 12 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = def.MinLeaf
	}
	if len(cfg.Features.Lags) == 0 {
		cfg.Features = def.Features
	}
	if cfg.MinObservations < 8 {
		cfg.MinObservations = def.MinObservations
	}
	return &GradientBoosted{cfg: cfg, state: unfittedState("not fitted")}
}

func (m *GradientBoosted) Kind() Kind         { return KindGradientBoosted }
func (m *GradientBoosted) FitState() FitState { return m.state }

// Fit boosts trees against the residual of the running prediction.
func (m *GradientBoosted) Fit(s timeseries.Series) error {
	if s.Len() < m.cfg.MinObservations {
		m.state = unfittedState(fmt.Sprintf("need %d observations, have %d", m.cfg.MinObservations, s.Len()))
		return domain.ErrSeriesTooShort
	}

	mat := features.Engineer(s, m.cfg.Features)
	x := mat.Rows
	y := s.Values

	m.base = timeseries.Mean(y)
	m.trees = m.trees[:0]

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}

	resid := make([]float64, len(y))
	for round := 0; round < m.cfg.Estimators; round++ {
		for i := range y {
			resid[i] = y[i] - pred[i]
		}
		tree := growTree(x, resid, allIndices(len(y)), 0, m.cfg.MaxDepth, m.cfg.MinLeaf)
		if tree == nil {
			break
		}
		m.trees = append(m.trees, tree)
		for i := range pred {
			pred[i] += m.cfg.LearningRate * tree.predict(x[i])
		}
	}

	for i := range y {
		resid[i] = y[i] - pred[i]
	}
	m.residualStd = timeseries.PopStdDev(resid)
	m.state = fittedState()
	return nil
}

// Forecast predicts recursively, like the linear model, but through the
// tree ensemble.
func (m *GradientBoosted) Forecast(s timeseries.Series, horizon int) (Bands, error) {
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
		v := math.Max(0, m.predictRow(mat.LastRow()))
		point[h] = v
		buf.push(v)
	}
	return residualBands(point, m.residualStd), nil
}

func (m *GradientBoosted) predictRow(row []float64) float64 {
	v := m.base
	for _, tree := range m.trees {
		v += m.cfg.LearningRate * tree.predict(row)
	}
	return v
}

// ─── Regression Tree ────────────────────────────────────────────────────────

// regressionTree is a binary CART node. Leaves carry the mean target of
// their samples; internal nodes split on feature <= threshold.
type regressionTree struct {
	feature   int
	threshold float64
	value     float64
	left      *regressionTree
	right     *regressionTree
}

func (t *regressionTree) leaf() bool { return t.left == nil }

func (t *regressionTree) predict(row []float64) float64 {
	for !t.leaf() {
		if row[t.feature] <= t.threshold {
			t = t.left
		} else {
			t = t.right
		}
	}
	return t.value
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// growTree builds a node by exhaustive best-SSE split search over all
// features and midpoints between consecutive distinct values.
func growTree(x [][]float64, target []float64, idx []int, depth, maxDepth, minLeaf int) *regressionTree {
	if len(idx) == 0 {
		return nil
	}
	node := &regressionTree{value: meanAt(target, idx)}
	if depth >= maxDepth || len(idx) < 2*minLeaf || constantAt(target, idx) {
		return node
	}

	bestSSE := sseAt(target, idx)
	var bestFeature int
	var bestThreshold float64
	var bestLeft, bestRight []int
	split := false

	cols := len(x[idx[0]])
	for f := 0; f < cols; f++ {
		thresholds := candidateThresholds(x, idx, f)
		for _, th := range thresholds {
			left := idx[:0:0]
			right := idx[:0:0]
			for _, i := range idx {
				if x[i][f] <= th {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) < minLeaf || len(right) < minLeaf {
				continue
			}
			sse := sseAt(target, left) + sseAt(target, right)
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = th
				bestLeft = left
				bestRight = right
				split = true
			}
		}
	}
	if !split {
		return node
	}

	node.feature = bestFeature
	node.threshold = bestThreshold
	node.left = growTree(x, target, bestLeft, depth+1, maxDepth, minLeaf)
	node.right = growTree(x, target, bestRight, depth+1, maxDepth, minLeaf)
	if node.left == nil || node.right == nil {
		node.left, node.right = nil, nil
	}
	return node
}

// candidateThresholds returns midpoints between consecutive distinct
// sorted values of feature f over the sample subset.
func candidateThresholds(x [][]float64, idx []int, f int) []float64 {
	vals := make([]float64, 0, len(idx))
	for _, i := range idx {
		vals = append(vals, x[i][f])
	}
	sort.Float64s(vals)
	out := vals[:0:0]
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1] {
			out = append(out, (vals[i]+vals[i-1])/2)
		}
	}
	return out
}

func meanAt(target []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += target[i]
	}
	return sum / float64(len(idx))
}

func sseAt(target []float64, idx []int) float64 {
	m := meanAt(target, idx)
	var sse float64
	for _, i := range idx {
		d := target[i] - m
		sse += d * d
	}
	return sse
}

func constantAt(target []float64, idx []int) bool {
	first := target[idx[0]]
	for _, i := range idx[1:] {
		if math.Abs(target[i]-first) > 1e-12 {
			return false
		}
	}
	return true
}
