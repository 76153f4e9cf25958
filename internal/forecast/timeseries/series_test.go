package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincast-io/fincast/internal/domain"
)

func txn(date time.Time, amount float64, c domain.Category) domain.Transaction {
	return domain.Transaction{
		Date:      date,
		Amount:    decimal.NewFromFloat(amount),
		Category:  c,
		Direction: c.Direction(),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ─── Aggregation Tests ──────────────────────────────────────────────────────

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday stays", time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"wednesday rolls back", time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"sunday rolls back", time.Date(2025, 6, 8, 23, 59, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.in); !got.Equal(tt.want) {
				t.Errorf("WeekStart(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAggregateZeroFillsGaps(t *testing.T) {
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	ds := domain.HistoricalDataset{
		Transactions: []domain.Transaction{
			txn(monday, 100, domain.Revenue),
			txn(monday.AddDate(0, 0, 2), 50, domain.Revenue), // same week
			// week 2 empty
			txn(monday.AddDate(0, 0, 14), 200, domain.Revenue),
		},
	}

	s := Aggregate(ds, domain.Revenue)

	if s.Len() != 3 {
		t.Fatalf("series length = %d, want 3", s.Len())
	}
	want := []float64{150, 0, 200}
	for i, w := range want {
		if !almostEqual(s.Values[i], w) {
			t.Errorf("week %d = %v, want %v", i, s.Values[i], w)
		}
	}
	if !s.Start.Equal(monday) {
		t.Errorf("start = %v, want %v", s.Start, monday)
	}
	if !s.WeekDate(2).Equal(monday.AddDate(0, 0, 14)) {
		t.Errorf("WeekDate(2) = %v", s.WeekDate(2))
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	forward := domain.HistoricalDataset{Transactions: []domain.Transaction{
		txn(monday, 100, domain.Payroll),
		txn(monday.AddDate(0, 0, 7), 120, domain.Payroll),
	}}
	reversed := domain.HistoricalDataset{Transactions: []domain.Transaction{
		txn(monday.AddDate(0, 0, 7), 120, domain.Payroll),
		txn(monday, 100, domain.Payroll),
	}}

	a := Aggregate(forward, domain.Payroll)
	b := Aggregate(reversed, domain.Payroll)

	if a.Len() != b.Len() || !a.Start.Equal(b.Start) {
		t.Fatalf("shape differs: %v vs %v", a, b)
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Errorf("week %d differs: %v vs %v", i, a.Values[i], b.Values[i])
		}
	}
}

func TestAggregateEmptyCategory(t *testing.T) {
	s := Aggregate(domain.HistoricalDataset{}, domain.Travel)
	if s.Len() != 0 {
		t.Errorf("expected empty series, got %d periods", s.Len())
	}
}

func TestSeriesSlice(t *testing.T) {
	s := Series{Values: []float64{1, 2, 3, 4, 5}}
	head := s.Slice(3)
	if head.Len() != 3 || head.Values[2] != 3 {
		t.Fatalf("Slice(3) = %v", head.Values)
	}
	// Mutating the slice must not touch the parent.
	head.Values[0] = 99
	if s.Values[0] != 1 {
		t.Error("Slice aliases parent storage")
	}
}

// ─── Statistics Tests ───────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(values); !almostEqual(got, 5) {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := PopStdDev(values); !almostEqual(got, 2) {
		t.Errorf("PopStdDev = %v, want 2", got)
	}
	if got := Median(values); !almostEqual(got, 4.5) {
		t.Errorf("Median = %v, want 4.5", got)
	}
	if got := Min(values); got != 2 {
		t.Errorf("Min = %v, want 2", got)
	}
	if got := Max(values); got != 9 {
		t.Errorf("Max = %v, want 9", got)
	}
}

func TestStatsDegenerate(t *testing.T) {
	if Mean(nil) != 0 || StdDev(nil) != 0 || Median(nil) != 0 {
		t.Error("empty-slice statistics should all be zero")
	}
	if StdDev([]float64{7}) != 0 {
		t.Error("single-value sample std should be zero")
	}
	if got := Volatility([]float64{0, 0, 0}); got != 0 {
		t.Errorf("Volatility of zero series = %v, want 0", got)
	}
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{1, 4, 9, 16})
	want := []float64{3, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("Diff len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMeanAbsError(t *testing.T) {
	got := MeanAbsError([]float64{10, 20, 30}, []float64{12, 18, 30})
	if !almostEqual(got, 4.0/3.0) {
		t.Errorf("MeanAbsError = %v, want %v", got, 4.0/3.0)
	}
}
