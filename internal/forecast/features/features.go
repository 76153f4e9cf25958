// Package features derives per-period numeric attributes from a weekly
// category series: calendar fields, cyclical seasonality encodings, lags,
// rolling statistics, exponential moving averages, and growth/difference
// terms. The output feeds the regression and gradient-boosted forecasters.
//
// Engineering is a pure function of (series, config): the same inputs
// always produce the same matrix, row i describing period i.
package features

import (
	"fmt"
	"math"

	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config selects which derived attributes to compute.
type Config struct {
	// Lags are the lag_k offsets, in periods.
	Lags []int

	// RollingWindows are the window sizes for rolling mean/std (and, when
	// Extended, rolling min/max).
	RollingWindows []int

	// EMASpans are the spans for exponential moving averages.
	EMASpans []int

	// SeasonalLag is the offset for the seasonal difference term.
	SeasonalLag int

	// Extended adds the richer attribute set used by the tree model:
	// quarter cyclical encodings, month/quarter boundary flags, rolling
	// min/max, seasonal growth, and acceleration.
	Extended bool
}

// DefaultConfig returns the attribute set for the linear feature
// regression: short lags, three rolling windows, two EMA spans.
func DefaultConfig() Config {
	return Config{
		Lags:           []int{1, 2, 3, 4},
		RollingWindows: []int{4, 8, 12},
		EMASpans:       []int{4, 8},
		SeasonalLag:    4,
	}
}

// ExtendedConfig returns the expanded attribute set for the gradient
// boosted model: higher-order lags, an extra rolling window, and the
// Extended calendar/momentum attributes.
func ExtendedConfig() Config {
	return Config{
		Lags:           []int{1, 2, 3, 4, 8, 12},
		RollingWindows: []int{4, 8, 12, 16},
		EMASpans:       []int{4, 8, 12},
		SeasonalLag:    4,
		Extended:       true,
	}
}

// ─── Matrix ─────────────────────────────────────────────────────────────────

// Matrix is the engineered feature table: Rows[i] holds the attributes of
// period i, column names in Names. Ephemeral, recomputed per call.
type Matrix struct {
	Names []string
	Rows  [][]float64
}

// NumRows returns the number of periods.
func (m Matrix) NumRows() int { return len(m.Rows) }

// NumCols returns the number of attributes.
func (m Matrix) NumCols() int { return len(m.Names) }

// LastRow returns a copy of the final period's attributes, the input used
// to predict the next step during recursive forecasting.
func (m Matrix) LastRow() []float64 {
	if len(m.Rows) == 0 {
		return nil
	}
	row := make([]float64, len(m.Rows[len(m.Rows)-1]))
	copy(row, m.Rows[len(m.Rows)-1])
	return row
}

// ─── Engineering ────────────────────────────────────────────────────────────

// Engineer computes the configured attribute columns for every period of
// the series. Boundary gaps (lags before the series start, differences at
// period zero) are back-filled with the next valid value, then any column
// that never becomes valid is zero-filled.
func Engineer(s timeseries.Series, cfg Config) Matrix {
	n := s.Len()
	values := s.Values

	var names []string
	var cols [][]float64
	add := func(name string, col []float64) {
		names = append(names, name)
		cols = append(cols, col)
	}

	// Calendar attributes.
	weekOfYear := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	weekday := make([]float64, n)
	for i := 0; i < n; i++ {
		date := s.WeekDate(i)
		_, isoWeek := date.ISOWeek()
		weekOfYear[i] = float64(isoWeek)
		month[i] = float64(date.Month())
		quarter[i] = float64((int(date.Month())-1)/3 + 1)
		weekday[i] = float64((int(date.Weekday()) + 6) % 7)
	}
	add("week_of_year", weekOfYear)
	add("month", month)
	add("quarter", quarter)
	add("day_of_week", weekday)

	// Cyclical encodings: map the calendar position onto the unit circle so
	// December sits next to January.
	add("month_sin", cyclical(month, 12, math.Sin))
	add("month_cos", cyclical(month, 12, math.Cos))
	add("week_sin", cyclical(weekOfYear, 52, math.Sin))
	add("week_cos", cyclical(weekOfYear, 52, math.Cos))
	if cfg.Extended {
		add("quarter_sin", cyclical(quarter, 4, math.Sin))
		add("quarter_cos", cyclical(quarter, 4, math.Cos))
		add("is_month_start", monthBoundary(s, true))
		add("is_month_end", monthBoundary(s, false))
	}

	// Trend index.
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = float64(i)
	}
	add("time_index", trend)

	// Lags.
	for _, lag := range cfg.Lags {
		add(fmt.Sprintf("lag_%d", lag), lagged(values, lag))
	}

	// Rolling statistics (window includes the current period, shorter
	// windows at the series head).
	for _, w := range cfg.RollingWindows {
		add(fmt.Sprintf("rolling_mean_%d", w), rolling(values, w, timeseries.Mean))
		add(fmt.Sprintf("rolling_std_%d", w), rollingStd(values, w))
		if cfg.Extended {
			add(fmt.Sprintf("rolling_min_%d", w), rolling(values, w, timeseries.Min))
			add(fmt.Sprintf("rolling_max_%d", w), rolling(values, w, timeseries.Max))
		}
	}

	// Exponential moving averages.
	for _, span := range cfg.EMASpans {
		add(fmt.Sprintf("ewm_%d", span), ema(values, span))
	}

	// Growth and difference terms. A zero denominator yields a missing
	// observation rather than ±Inf.
	growth := pctChange(values, 1)
	add("growth_rate", growth)
	add("diff_1", difference(values, 1))
	if cfg.SeasonalLag > 0 {
		add(fmt.Sprintf("diff_%d", cfg.SeasonalLag), difference(values, cfg.SeasonalLag))
	}
	if cfg.Extended {
		if cfg.SeasonalLag > 0 {
			add(fmt.Sprintf("growth_rate_%d", cfg.SeasonalLag), pctChange(values, cfg.SeasonalLag))
		}
		add("acceleration", difference(growth, 1))
	}

	// Back-fill then zero-fill every column.
	for _, col := range cols {
		backfill(col)
	}

	// Assemble row-major.
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(cols))
		for j, col := range cols {
			row[j] = col[i]
		}
		rows[i] = row
	}

	return Matrix{Names: names, Rows: rows}
}

// ─── Column Builders ────────────────────────────────────────────────────────

func cyclical(col []float64, period float64, fn func(float64) float64) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = fn(2 * math.Pi * v / period)
	}
	return out
}

func monthBoundary(s timeseries.Series, start bool) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		date := s.WeekDate(i)
		if start && date.Day() <= 7 {
			out[i] = 1
		}
		if !start {
			// Last seven days of the month.
			if date.AddDate(0, 0, 7).Month() != date.Month() {
				out[i] = 1
			}
		}
	}
	return out
}

func lagged(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-lag]
		}
	}
	return out
}

func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = fn(values[lo : i+1])
	}
	return out
}

// rollingStd uses the sample deviation; a single-period window has no
// spread and is treated as missing, matching min_periods semantics.
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		if i-lo+1 < 2 {
			out[i] = math.NaN()
		} else {
			out[i] = timeseries.StdDev(values[lo : i+1])
		}
	}
	return out
}

// ema computes the span-parameterized exponential moving average with
// alpha = 2/(span+1), seeded on the first value.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func pctChange(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag || values[i-lag] == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = (values[i] - values[i-lag]) / values[i-lag]
		}
	}
	return out
}

func difference(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag || math.IsNaN(values[i-lag]) || math.IsNaN(values[i]) {
			out[i] = math.NaN()
		} else {
			out[i] = values[i] - values[i-lag]
		}
	}
	return out
}

// backfill replaces each NaN with the next valid value below it, then
// zeroes anything still missing (a column that never became valid).
func backfill(col []float64) {
	next := math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			col[i] = next
		} else {
			next = col[i]
		}
	}
	for i := range col {
		if math.IsNaN(col[i]) {
			col[i] = 0
		}
	}
}
