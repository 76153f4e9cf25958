package engine

import (
	"fmt"
	"math"

	"github.com/fincast-io/fincast/internal/domain"
)

// ─── Dataset Validation ─────────────────────────────────────────────────────

const (
	minTransactions = 10
	minSpanDays     = 30
)

// ValidateDataset inspects the raw dataset and reports findings. Findings
// are advisory; the engine cleans and proceeds regardless.
func ValidateDataset(d domain.HistoricalDataset) []string {
	var issues []string
	if len(d.Transactions) < minTransactions {
		issues = append(issues, fmt.Sprintf("only %d transactions, need at least %d for a reliable forecast", len(d.Transactions), minTransactions))
	}
	if d.SpanDays() < minSpanDays {
		issues = append(issues, fmt.Sprintf("history spans %d days, need at least %d", d.SpanDays(), minSpanDays))
	}

	negatives, missing, outOfRange := 0, 0, 0
	for _, txn := range d.Transactions {
		if txn.Amount.IsNegative() {
			negatives++
		}
		if txn.Date.IsZero() {
			missing++
			continue
		}
		if txn.Date.Before(d.StartDate) || txn.Date.After(d.EndDate) {
			outOfRange++
		}
	}
	if negatives > 0 {
		issues = append(issues, fmt.Sprintf("%d transactions with negative amount", negatives))
	}
	if missing > 0 {
		issues = append(issues, fmt.Sprintf("%d transactions with missing date", missing))
	}
	if outOfRange > 0 {
		issues = append(issues, fmt.Sprintf("%d transactions dated outside the declared bounds", outOfRange))
	}
	return issues
}

// cleanDataset drops the transactions validation flags as unusable:
// negative amounts, missing dates, dates outside the declared bounds.
func cleanDataset(d domain.HistoricalDataset) domain.HistoricalDataset {
	kept := make([]domain.Transaction, 0, len(d.Transactions))
	for _, txn := range d.Transactions {
		if txn.Amount.IsNegative() || txn.Date.IsZero() {
			continue
		}
		if txn.Date.Before(d.StartDate) || txn.Date.After(d.EndDate) {
			continue
		}
		kept = append(kept, txn)
	}
	return domain.HistoricalDataset{
		Transactions:   kept,
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		OpeningBalance: d.OpeningBalance,
	}
}

// ─── Forecast Validation ────────────────────────────────────────────────────

// ValidationResult is the advisory health report for a generated forecast.
type ValidationResult struct {
	IsValid         bool     `json:"is_valid"`
	ConfidenceScore float64  `json:"confidence_score"`
	Issues          []string `json:"issues"`
	Warnings        []string `json:"warnings"`
}

const (
	// wideIntervalRatio flags weeks whose band is wide relative to the
	// predicted balance.
	wideIntervalRatio = 0.5

	// swingRatio flags implausible week-over-week balance moves.
	swingRatio = 0.3

	issuePenalty    = 0.3
	warningPenalty  = 0.2
	warningTolerant = 3
)

// Validator sanity-checks generated forecasts. It never fails; every
// finding lands in the result.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator { return &Validator{} }

// Validate scores a forecast. Negative predicted balances are issues;
// wide intervals and violent week-over-week swings are warnings. The
// confidence score starts at 1.0, loses 0.3 when any issue exists and 0.2
// when warnings pile up, is capped by the forecast's own backtested
// accuracy, and never goes below zero.
func (v *Validator) Validate(forecast domain.Forecast, dataset domain.HistoricalDataset) ValidationResult {
	var issues, warnings []string

	for i, p := range forecast.Points {
		week := i + 1
		if p.PredictedBalance < 0 {
			issues = append(issues, fmt.Sprintf("week %d: predicted balance %.2f below zero", week, p.PredictedBalance))
		}
		if width := p.ConfidenceUpper - p.ConfidenceLower; width > wideIntervalRatio*math.Abs(p.PredictedBalance) && p.PredictedBalance != 0 {
			warnings = append(warnings, fmt.Sprintf("week %d: confidence interval width %.2f exceeds half the predicted balance", week, width))
		}
		// Swings are judged between forecast points only; the step off
		// the current balance is not scored.
		if i > 0 {
			if prev := forecast.Points[i-1].PredictedBalance; prev != 0 {
				if change := math.Abs(p.PredictedBalance-prev) / math.Abs(prev); change > swingRatio {
					warnings = append(warnings, fmt.Sprintf("week %d: balance moved %.0f%% week over week", week, change*100))
				}
			}
		}
	}

	if historyWeeks := dataset.SpanDays() / 7; len(forecast.Points) > historyWeeks && historyWeeks > 0 {
		warnings = append(warnings, fmt.Sprintf("forecasting %d weeks from only %d weeks of history", len(forecast.Points), historyWeeks))
	}

	score := 1.0
	if len(issues) > 0 {
		score -= issuePenalty
	}
	if len(warnings) > warningTolerant {
		score -= warningPenalty
	}
	if forecast.ModelAccuracy != nil {
		score = math.Min(score, *forecast.ModelAccuracy)
	}
	score = math.Max(0, score)

	return ValidationResult{
		IsValid:         len(issues) == 0,
		ConfidenceScore: score,
		Issues:          issues,
		Warnings:        warnings,
	}
}
