package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/predictor"
)

// ─── Fixtures ───────────────────────────────────────────────────────────────

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e := New(cfg, zerolog.Nop())
	e.Now = func() time.Time {
		return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

// testDataset builds weeks of steady revenue and payroll starting
// 2025-01-06, one transaction of each per week.
func testDataset(t *testing.T, weeks int) domain.HistoricalDataset {
	t.Helper()
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	var txns []domain.Transaction
	for w := 0; w < weeks; w++ {
		date := start.AddDate(0, 0, 7*w)
		txns = append(txns,
			domain.Transaction{
				Date:      date,
				Amount:    decimal.NewFromInt(5000),
				Category:  domain.Revenue,
				Direction: domain.Inflow,
			},
			domain.Transaction{
				Date:      date.AddDate(0, 0, 2),
				Amount:    decimal.NewFromInt(3000),
				Category:  domain.Payroll,
				Direction: domain.Outflow,
			},
		)
	}
	return domain.HistoricalDataset{
		Transactions:   txns,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 7*weeks-1),
		OpeningBalance: decimal.NewFromInt(10000),
	}
}

// ─── Generate ───────────────────────────────────────────────────────────────

func TestGenerateBalanceRecursion(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 8})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.Points) != 8 {
		t.Fatalf("points = %d, want 8", len(f.Points))
	}

	prev := f.CurrentBalance
	for i, p := range f.Points {
		if math.Abs(p.PredictedBalance-(prev+p.NetCashFlow)) > 1e-9 {
			t.Errorf("week %d: balance %.4f != prev %.4f + net %.4f", i+1, p.PredictedBalance, prev, p.NetCashFlow)
		}
		if math.Abs(p.NetCashFlow-(p.PredictedInflows-p.PredictedOutflows)) > 1e-9 {
			t.Errorf("week %d: net %.4f != inflows - outflows", i+1, p.NetCashFlow)
		}
		prev = p.PredictedBalance
	}
}

func TestGenerateBandSymmetricAndConstantWidth(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 6})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	width0 := f.Points[0].ConfidenceUpper - f.Points[0].ConfidenceLower
	if width0 < 0 {
		t.Fatalf("negative band width %v", width0)
	}
	for i, p := range f.Points {
		width := p.ConfidenceUpper - p.ConfidenceLower
		if math.Abs(width-width0) > 1e-9 {
			t.Errorf("week %d: width %.4f != week 1 width %.4f", i+1, width, width0)
		}
		mid := (p.ConfidenceUpper + p.ConfidenceLower) / 2
		if math.Abs(mid-p.PredictedBalance) > 1e-9 {
			t.Errorf("week %d: band not centered on balance", i+1)
		}
	}
}

func TestGenerateWeeklyDates(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first := ds.EndDate.AddDate(0, 0, 1)
	for i, p := range f.Points {
		want := first.AddDate(0, 0, 7*i)
		if !p.Date.Equal(want) {
			t.Errorf("week %d date = %v, want %v", i+1, p.Date, want)
		}
	}
}

func TestGenerateZeroHorizon(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.Points) != 0 {
		t.Fatalf("points = %d, want 0", len(f.Points))
	}
	if f.FinalBalance() != f.CurrentBalance || f.MinimumBalance() != f.CurrentBalance {
		t.Errorf("empty horizon: final %.2f / min %.2f != current %.2f", f.FinalBalance(), f.MinimumBalance(), f.CurrentBalance)
	}
}

func TestGenerateEmptyDataset(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	_, err := e.Generate(context.Background(), Request{Dataset: domain.HistoricalDataset{}, CompanyName: "acme", WeeksAhead: 4})
	if err != domain.ErrEmptyDataset {
		t.Errorf("err = %v, want ErrEmptyDataset", err)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 24)
	req := Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 8}

	a, err := e.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	b, err := e.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	for i := range a.Points {
		if a.Points[i].PredictedBalance != b.Points[i].PredictedBalance ||
			a.Points[i].NetCashFlow != b.Points[i].NetCashFlow {
			t.Errorf("week %d differs between identical requests", i+1)
		}
	}
}

func TestGenerateCurrentBalance(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 12)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 10000 opening + 12 weeks × (5000 − 3000).
	if want := 34000.0; f.CurrentBalance != want {
		t.Errorf("current balance = %.2f, want %.2f", f.CurrentBalance, want)
	}
}

func TestGenerateCleansBadTransactions(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 12)
	ds.Transactions = append(ds.Transactions,
		domain.Transaction{ // negative amount
			Date:      ds.StartDate.AddDate(0, 0, 3),
			Amount:    decimal.NewFromInt(-500),
			Category:  domain.Marketing,
			Direction: domain.Outflow,
		},
		domain.Transaction{ // missing date
			Amount:    decimal.NewFromInt(900),
			Category:  domain.Revenue,
			Direction: domain.Inflow,
		},
		domain.Transaction{ // outside bounds
			Date:      ds.EndDate.AddDate(0, 0, 30),
			Amount:    decimal.NewFromInt(700),
			Category:  domain.Revenue,
			Direction: domain.Inflow,
		},
	)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Dropped rows must not move the balance.
	if want := 34000.0; f.CurrentBalance != want {
		t.Errorf("current balance = %.2f, want %.2f after cleaning", f.CurrentBalance, want)
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Generate(ctx, Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 4}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ─── Adjustments ────────────────────────────────────────────────────────────

func TestAdjustmentShiftsCategory(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	base, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 6})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}

	const delta = 250.0
	adj, err := e.Generate(context.Background(), Request{
		Dataset:     ds,
		CompanyName: "acme",
		WeeksAhead:  6,
		Adjustments: map[string]float64{"revenue": delta},
	})
	if err != nil {
		t.Fatalf("adjusted: %v", err)
	}

	for i := range base.Points {
		gotShift := adj.Points[i].PredictedInflows - base.Points[i].PredictedInflows
		if math.Abs(gotShift-delta) > 1e-9 {
			t.Errorf("week %d: inflow shift = %.4f, want %.4f", i+1, gotShift, delta)
		}
		cum := delta * float64(i+1)
		if math.Abs((adj.Points[i].PredictedBalance-base.Points[i].PredictedBalance)-cum) > 1e-9 {
			t.Errorf("week %d: balance shift != cumulative %.2f", i+1, cum)
		}
	}
}

func TestAdjustmentMatchesEnumKey(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	byName, err := e.Generate(context.Background(), Request{
		Dataset: ds, CompanyName: "acme", WeeksAhead: 4,
		Adjustments: map[string]float64{"payroll": 100},
	})
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	byKey, err := e.Generate(context.Background(), Request{
		Dataset: ds, CompanyName: "acme", WeeksAhead: 4,
		Adjustments: map[string]float64{"PAYROLL": 100},
	})
	if err != nil {
		t.Fatalf("by key: %v", err)
	}
	for i := range byName.Points {
		if byName.Points[i].PredictedOutflows != byKey.Points[i].PredictedOutflows {
			t.Errorf("week %d: name and key adjustments diverge", i+1)
		}
	}
}

func TestAdjustmentUnknownKeySkipped(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	base, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 4})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	adj, err := e.Generate(context.Background(), Request{
		Dataset: ds, CompanyName: "acme", WeeksAhead: 4,
		Adjustments: map[string]float64{"lottery_winnings": 1e6},
	})
	if err != nil {
		t.Fatalf("adjusted: %v", err)
	}
	if adj.FinalBalance() != base.FinalBalance() {
		t.Errorf("unknown adjustment changed the forecast")
	}
}

// ─── Receivables Routing ────────────────────────────────────────────────────

func TestReceivablesRouteARCollections(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	f, err := e.Generate(context.Background(), Request{
		Dataset:     ds,
		CompanyName: "acme",
		WeeksAhead:  4,
		Receivables: predictor.AgingSchedule{predictor.BucketCurrent: 10000},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// The dataset has no AR transactions, so any AR inflow must come from
	// the aging projector: week 1 collects 10000×0.30 + 10000×0.05.
	wantAR := 3500.0
	gotAR := f.Points[0].PredictedInflows - 5000 // steady revenue forecast
	if math.Abs(gotAR-wantAR) > 500 {
		t.Errorf("week 1 AR inflow ≈ %.2f, want near %.2f", gotAR, wantAR)
	}
}

// ─── Accuracy Heuristic ─────────────────────────────────────────────────────

func TestAccuracyRequiresHistory(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	short, err := e.Generate(context.Background(), Request{Dataset: testDataset(t, 12), CompanyName: "acme", WeeksAhead: 2})
	if err != nil {
		t.Fatalf("short: %v", err)
	}
	if short.ModelAccuracy != nil {
		t.Errorf("12-week history reported accuracy %v", *short.ModelAccuracy)
	}

	long, err := e.Generate(context.Background(), Request{Dataset: testDataset(t, 30), CompanyName: "acme", WeeksAhead: 2})
	if err != nil {
		t.Fatalf("long: %v", err)
	}
	if long.ModelAccuracy == nil {
		t.Fatal("30-week history reported no accuracy")
	}
	if acc := *long.ModelAccuracy; acc < 0.75 || acc > 0.93 {
		t.Errorf("accuracy %v outside [0.75, 0.93]", acc)
	}
}

func TestAccuracyCapped(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	f, err := e.Generate(context.Background(), Request{Dataset: testDataset(t, 80), CompanyName: "acme", WeeksAhead: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.ModelAccuracy == nil || *f.ModelAccuracy != 0.93 {
		t.Errorf("80-week accuracy = %v, want capped 0.93", f.ModelAccuracy)
	}
}

// ─── Ensemble Mode ──────────────────────────────────────────────────────────

func TestGenerateEnsembleMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseEnsemble = true
	e := newTestEngine(t, cfg)
	ds := testDataset(t, 30)
	f, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 6})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prev := f.CurrentBalance
	for i, p := range f.Points {
		if math.Abs(p.PredictedBalance-(prev+p.NetCashFlow)) > 1e-9 {
			t.Errorf("week %d: recursion identity broken in ensemble mode", i+1)
		}
		prev = p.PredictedBalance
	}
}

// ─── Scenarios ──────────────────────────────────────────────────────────────

func TestGenerateScenario(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ds := testDataset(t, 20)
	baseline, err := e.Generate(context.Background(), Request{Dataset: ds, CompanyName: "acme", WeeksAhead: 6})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}

	sc, err := e.GenerateScenario(context.Background(), baseline, "hire two engineers", map[string]float64{"payroll": 4000}, ds)
	if err != nil {
		t.Fatalf("GenerateScenario: %v", err)
	}
	if sc.Name != "hire two engineers" {
		t.Errorf("name = %q", sc.Name)
	}
	if len(sc.Forecast.Points) != len(baseline.Points) {
		t.Errorf("scenario horizon %d != baseline %d", len(sc.Forecast.Points), len(baseline.Points))
	}
	wantImpact := sc.Forecast.FinalBalance() - baseline.FinalBalance()
	if sc.ImpactVsBaseline != wantImpact {
		t.Errorf("impact = %.2f, want %.2f", sc.ImpactVsBaseline, wantImpact)
	}
	// Extra payroll burns cash: 4000 × 6 weeks.
	if math.Abs(sc.ImpactVsBaseline-(-24000)) > 1e-6 {
		t.Errorf("impact = %.2f, want -24000", sc.ImpactVsBaseline)
	}
	if sc.Adjustments[domain.Payroll] != 4000 {
		t.Errorf("resolved adjustments = %v", sc.Adjustments)
	}
}

func TestWalkBalanceRepeatable(t *testing.T) {
	// Mixed-magnitude values across all sixteen categories, where a
	// varying float summation order would show up in the low bits.
	end := time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC)
	forecasts := make(map[domain.Category]domain.CategoryForecast, 16)
	for i, c := range domain.Categories() {
		vals := make([]float64, 8)
		for w := range vals {
			vals[w] = math.Pow(10, float64(i%8)) / 3 * (1 + 0.01*float64(w))
		}
		forecasts[c] = domain.CategoryForecast{
			Category:           c,
			WeeklyPredictions:  vals,
			ConfidenceInterval: math.Pow(10, float64((i*5)%7)) / 7,
		}
	}

	first := walkBalance(1e16, end, forecasts, 8)
	for run := 0; run < 200; run++ {
		again := walkBalance(1e16, end, forecasts, 8)
		for w := range first {
			if again[w] != first[w] {
				t.Fatalf("run %d week %d: %+v != %+v", run, w, again[w], first[w])
			}
		}
	}
}
