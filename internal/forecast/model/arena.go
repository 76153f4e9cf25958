package model

import "github.com/fincast-io/fincast/internal/forecast/timeseries"

// ─── Forecast Arena ─────────────────────────────────────────────────────────

// arena is the fixed-capacity buffer used for recursive multi-step
// forecasting: allocated once at history+horizon, appended to in place.
// Generated values never alias the caller's historical series.
type arena struct {
	series timeseries.Series
	cap    int
}

// newArena copies the history into a buffer with exactly horizon spare
// slots.
func newArena(s timeseries.Series, horizon int) *arena {
	values := make([]float64, s.Len(), s.Len()+horizon)
	copy(values, s.Values)
	return &arena{
		series: timeseries.Series{Category: s.Category, Start: s.Start, Values: values},
		cap:    s.Len() + horizon,
	}
}

// push appends one generated value. Within capacity this never
// reallocates, so feature engineering between steps sees a stable buffer.
func (a *arena) push(v float64) {
	if len(a.series.Values) >= a.cap {
		return // horizon exhausted; recursive loop is bounded by the same count
	}
	a.series.Values = append(a.series.Values, v)
}

// current returns the extended series view (history + generated so far).
func (a *arena) current() timeseries.Series {
	return a.series
}
