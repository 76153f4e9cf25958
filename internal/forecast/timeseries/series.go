// Package timeseries converts raw transactions into the zero-filled weekly
// per-category series every forecaster consumes, and provides the small
// statistics helpers shared across the forecasting packages.
package timeseries

import (
	"time"

	"github.com/fincast-io/fincast/internal/domain"
)

// ─── Series ─────────────────────────────────────────────────────────────────

// Series is one category's weekly cash-flow history: ordered ascending,
// gap-free (weeks without transactions hold zero). Derived per call, never
// persisted.
type Series struct {
	Category domain.Category
	Start    time.Time // Monday of the first populated week
	Values   []float64
}

// Len returns the number of weekly periods.
func (s Series) Len() int { return len(s.Values) }

// WeekDate returns the Monday of period i (i may exceed Len for future weeks).
func (s Series) WeekDate(i int) time.Time {
	return s.Start.AddDate(0, 0, 7*i)
}

// Last returns the most recent value, or zero for an empty series.
func (s Series) Last() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// Slice returns a copy of the series truncated to its first n periods.
// Used for walk-forward validation splits.
func (s Series) Slice(n int) Series {
	if n > len(s.Values) {
		n = len(s.Values)
	}
	values := make([]float64, n)
	copy(values, s.Values[:n])
	return Series{Category: s.Category, Start: s.Start, Values: values}
}

// ─── Aggregation ────────────────────────────────────────────────────────────

// WeekStart returns the Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

// Aggregate sums a category's transaction amounts into weekly buckets and
// zero-fills every week between the category's first and last transaction.
// The result is deterministic and ascending regardless of input order.
func Aggregate(dataset domain.HistoricalDataset, category domain.Category) Series {
	txns := dataset.ByCategory(category)
	if len(txns) == 0 {
		return Series{Category: category}
	}

	first := WeekStart(txns[0].Date)
	last := first
	totals := make(map[time.Time]float64, len(txns))
	for _, txn := range txns {
		week := WeekStart(txn.Date)
		totals[week] += txn.Amount.InexactFloat64()
		if week.Before(first) {
			first = week
		}
		if week.After(last) {
			last = week
		}
	}

	weeks := int(last.Sub(first).Hours()/(24*7)) + 1
	values := make([]float64, weeks)
	for week, total := range totals {
		idx := int(week.Sub(first).Hours() / (24 * 7))
		values[idx] = total
	}

	return Series{Category: category, Start: first, Values: values}
}
