package model

import (
	"math"

	"github.com/fincast-io/fincast/internal/domain"
)

// ─── Dense Linear Algebra ───────────────────────────────────────────────────
// Small dense kernels for the model fits. Problem sizes here are tiny
// (tens of columns, a few hundred rows), so plain Gaussian elimination on
// the normal equations is both adequate and allocation-cheap.

// solveLinear solves A·x = b in place via Gaussian elimination with
// partial pivoting. A is square, row-major. Returns ErrSingularMatrix when
// no usable pivot exists.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		// Partial pivot: largest magnitude entry in this column.
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, domain.ErrSingularMatrix
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		// Eliminate below.
		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	// Back substitution.
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// leastSquares solves min ‖Xβ - y‖² (+ λ‖β₁..‖² when ridge > 0) via the
// normal equations. X rows are observations WITHOUT an intercept column;
// the intercept is added here and never penalized. Returns the
// coefficient vector [intercept, β…].
func leastSquares(x [][]float64, y []float64, ridge float64) ([]float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, domain.ErrSeriesTooShort
	}
	cols := len(x[0]) + 1 // +1 intercept

	// Build XtX and Xty with the implicit leading 1s column.
	xtx := make([][]float64, cols)
	for i := range xtx {
		xtx[i] = make([]float64, cols)
	}
	xty := make([]float64, cols)

	row := make([]float64, cols)
	for r := range x {
		row[0] = 1
		copy(row[1:], x[r])
		for i := 0; i < cols; i++ {
			for j := i; j < cols; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * y[r]
		}
	}
	// Mirror the upper triangle.
	for i := 0; i < cols; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}

	// Penalize everything except the intercept.
	if ridge > 0 {
		for i := 1; i < cols; i++ {
			xtx[i][i] += ridge
		}
	}

	return solveLinear(xtx, xty)
}

// lassoCoordinateDescent fits an L1-penalized linear model on already
// standardized features. y is centered internally; the returned vector is
// [intercept, β…]. Fixed iteration budget; converges when no coefficient
// moves more than tol.
func lassoCoordinateDescent(x [][]float64, y []float64, lambda float64) ([]float64, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, domain.ErrSeriesTooShort
	}
	p := len(x[0])

	// Center the target; the intercept absorbs the mean.
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	beta := make([]float64, p)
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = y[i] - yMean
	}

	// Column squared norms (constant across sweeps).
	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			norms[j] += x[i][j] * x[i][j]
		}
	}

	const (
		maxSweeps = 250
		tol       = 1e-7
	)
	for sweep := 0; sweep < maxSweeps; sweep++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			// Partial residual correlation with column j.
			var rho float64
			for i := 0; i < n; i++ {
				rho += x[i][j] * (resid[i] + x[i][j]*beta[j])
			}
			updated := softThreshold(rho, lambda*float64(n)) / norms[j]
			delta := updated - beta[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= delta * x[i][j]
				}
				beta[j] = updated
			}
			if math.Abs(delta) > maxDelta {
				maxDelta = math.Abs(delta)
			}
		}
		if maxDelta < tol {
			break
		}
	}

	out := make([]float64, p+1)
	out[0] = yMean
	copy(out[1:], beta)
	return out, nil
}

// softThreshold is the lasso shrinkage operator.
func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}
