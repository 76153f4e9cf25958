package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fincast-io/fincast/internal/domain"
)

// ─── Dataset Validation ─────────────────────────────────────────────────────

func TestValidateDatasetFindings(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ds := domain.HistoricalDataset{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 10), // under 30 days
		Transactions: []domain.Transaction{
			{Date: start, Amount: decimal.NewFromInt(-100), Category: domain.Revenue, Direction: domain.Inflow},
			{Amount: decimal.NewFromInt(50), Category: domain.Revenue, Direction: domain.Inflow},
			{Date: start.AddDate(0, 0, 60), Amount: decimal.NewFromInt(50), Category: domain.Revenue, Direction: domain.Inflow},
		},
	}
	issues := ValidateDataset(ds)

	wantSubstrings := []string{
		"transactions, need at least",
		"spans 10 days",
		"negative amount",
		"missing date",
		"outside the declared bounds",
	}
	for _, want := range wantSubstrings {
		found := false
		for _, issue := range issues {
			if strings.Contains(issue, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no issue containing %q in %v", want, issues)
		}
	}
}

func TestValidateDatasetCleanHistory(t *testing.T) {
	ds := testDataset(t, 12)
	if issues := ValidateDataset(ds); len(issues) != 0 {
		t.Errorf("clean dataset produced issues: %v", issues)
	}
}

func TestCleanDataset(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	good := domain.Transaction{Date: start.AddDate(0, 0, 5), Amount: decimal.NewFromInt(100), Category: domain.Revenue, Direction: domain.Inflow}
	ds := domain.HistoricalDataset{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 40),
		Transactions: []domain.Transaction{
			good,
			{Date: start, Amount: decimal.NewFromInt(-5), Category: domain.COGS, Direction: domain.Outflow},
			{Amount: decimal.NewFromInt(5), Category: domain.COGS, Direction: domain.Outflow},
			{Date: start.AddDate(0, 0, 90), Amount: decimal.NewFromInt(5), Category: domain.COGS, Direction: domain.Outflow},
		},
	}
	cleaned := cleanDataset(ds)
	if len(cleaned.Transactions) != 1 {
		t.Fatalf("kept %d transactions, want 1", len(cleaned.Transactions))
	}
	if !cleaned.Transactions[0].Date.Equal(good.Date) {
		t.Errorf("kept the wrong transaction: %+v", cleaned.Transactions[0])
	}
}

// ─── Forecast Validation ────────────────────────────────────────────────────

func point(balance, lower, upper float64) domain.ForecastPoint {
	return domain.ForecastPoint{
		PredictedBalance: balance,
		ConfidenceLower:  lower,
		ConfidenceUpper:  upper,
	}
}

func TestValidateHealthyForecast(t *testing.T) {
	ds := testDataset(t, 30)
	f := domain.Forecast{
		CurrentBalance: 10000,
		Points: []domain.ForecastPoint{
			point(10500, 10400, 10600),
			point(11000, 10900, 11100),
		},
	}
	res := NewValidator().Validate(f, ds)
	if !res.IsValid {
		t.Errorf("healthy forecast invalid: %v", res.Issues)
	}
	if res.ConfidenceScore != 1.0 {
		t.Errorf("score = %v, want 1.0", res.ConfidenceScore)
	}
	if len(res.Issues) != 0 || len(res.Warnings) != 0 {
		t.Errorf("unexpected findings: %v / %v", res.Issues, res.Warnings)
	}
}

func TestValidateNegativeBalanceIsIssue(t *testing.T) {
	ds := testDataset(t, 30)
	f := domain.Forecast{
		CurrentBalance: 1000,
		Points: []domain.ForecastPoint{
			point(800, 750, 850),
			point(-200, -300, -100),
		},
	}
	res := NewValidator().Validate(f, ds)
	if res.IsValid {
		t.Error("negative balance forecast marked valid")
	}
	if len(res.Issues) == 0 {
		t.Fatal("no issues recorded")
	}
	if res.ConfidenceScore > 0.7+1e-9 {
		t.Errorf("score = %v, want ≤ 0.7 after issue penalty", res.ConfidenceScore)
	}
}

func TestValidateWideIntervalWarning(t *testing.T) {
	ds := testDataset(t, 30)
	f := domain.Forecast{
		CurrentBalance: 1000,
		Points: []domain.ForecastPoint{
			point(1000, 0, 2100), // width 2100 > 0.5×1000
		},
	}
	res := NewValidator().Validate(f, ds)
	if !res.IsValid {
		t.Error("warnings alone should not invalidate")
	}
	if len(res.Warnings) == 0 {
		t.Error("wide interval produced no warning")
	}
}

func TestValidateSwingWarning(t *testing.T) {
	ds := testDataset(t, 30)
	f := domain.Forecast{
		CurrentBalance: 1000,
		Points: []domain.ForecastPoint{
			point(1000, 990, 1010),
			point(1500, 1490, 1510), // +50% vs week 1
		},
	}
	res := NewValidator().Validate(f, ds)
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "week over week") {
			found = true
		}
	}
	if !found {
		t.Errorf("no swing warning in %v", res.Warnings)
	}
}

func TestValidateFirstWeekJumpNotASwing(t *testing.T) {
	ds := testDataset(t, 30)
	// The step off the current balance is not scored as a swing; only
	// point-to-point moves are.
	f := domain.Forecast{
		CurrentBalance: 1000,
		Points: []domain.ForecastPoint{
			point(1500, 1490, 1510), // +50% vs current balance
			point(1520, 1510, 1530),
		},
	}
	res := NewValidator().Validate(f, ds)
	for _, w := range res.Warnings {
		if strings.Contains(w, "week over week") {
			t.Errorf("unexpected swing warning: %v", w)
		}
	}
	if res.ConfidenceScore != 1.0 {
		t.Errorf("score = %v, want 1.0", res.ConfidenceScore)
	}
}

func TestValidateManyWarningsPenalized(t *testing.T) {
	ds := testDataset(t, 30)
	// Alternating big swings: every week trips the 30% rule.
	points := make([]domain.ForecastPoint, 6)
	balance := 1000.0
	for i := range points {
		if i%2 == 0 {
			balance *= 2
		} else {
			balance /= 2
		}
		points[i] = point(balance, balance-10, balance+10)
	}
	f := domain.Forecast{CurrentBalance: 1000, Points: points}
	res := NewValidator().Validate(f, ds)
	if len(res.Warnings) <= warningTolerant {
		t.Fatalf("only %d warnings", len(res.Warnings))
	}
	if res.ConfidenceScore > 0.8+1e-9 {
		t.Errorf("score = %v, want ≤ 0.8 after warning penalty", res.ConfidenceScore)
	}
}

func TestValidateCappedByAccuracy(t *testing.T) {
	ds := testDataset(t, 30)
	acc := 0.6
	f := domain.Forecast{
		CurrentBalance: 10000,
		ModelAccuracy:  &acc,
		Points:         []domain.ForecastPoint{point(10100, 10050, 10150)},
	}
	res := NewValidator().Validate(f, ds)
	if res.ConfidenceScore != 0.6 {
		t.Errorf("score = %v, want capped at accuracy 0.6", res.ConfidenceScore)
	}
}

func TestValidateScoreFloor(t *testing.T) {
	ds := testDataset(t, 30)
	acc := 0.1
	points := make([]domain.ForecastPoint, 8)
	balance := 1000.0
	for i := range points {
		balance = -balance * 2 // negative balances and wild swings together
		points[i] = point(balance, balance-5000, balance+5000)
	}
	f := domain.Forecast{CurrentBalance: 1000, ModelAccuracy: &acc, Points: points}
	res := NewValidator().Validate(f, ds)
	if res.ConfidenceScore < 0 {
		t.Errorf("score %v below zero", res.ConfidenceScore)
	}
	if res.ConfidenceScore > acc {
		t.Errorf("score %v above accuracy cap %v", res.ConfidenceScore, acc)
	}
	if math.IsNaN(res.ConfidenceScore) {
		t.Error("score is NaN")
	}
}

func TestValidateHorizonVsHistoryWarning(t *testing.T) {
	ds := testDataset(t, 8) // 8 weeks of history
	points := make([]domain.ForecastPoint, 20)
	for i := range points {
		points[i] = point(1000, 990, 1010)
	}
	f := domain.Forecast{CurrentBalance: 1000, Points: points}
	res := NewValidator().Validate(f, ds)
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "weeks of history") {
			found = true
		}
	}
	if !found {
		t.Errorf("no horizon-vs-history warning in %v", res.Warnings)
	}
}
