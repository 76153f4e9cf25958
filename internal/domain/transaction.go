package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Transaction ────────────────────────────────────────────────────────────

// Transaction is a single categorized cash movement. Amounts are always
// non-negative; the Direction carries the sign. Immutable once created.
type Transaction struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Category     Category        `json:"category"`
	Direction    Direction       `json:"direction"`
	Counterparty string          `json:"counterparty,omitempty"`
}

// Signed returns the amount with the direction applied: positive for
// inflows, negative for outflows.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == Outflow {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ─── Historical Dataset ─────────────────────────────────────────────────────

// HistoricalDataset is the ordered transaction history the engine forecasts
// from. It is owned by the caller and read-only to the core: every operation
// here returns copies or derived values, never mutates.
type HistoricalDataset struct {
	Transactions   []Transaction   `json:"transactions"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// SpanDays returns the number of days covered by the declared bounds.
func (d HistoricalDataset) SpanDays() int {
	return int(d.EndDate.Sub(d.StartDate).Hours() / 24)
}

// ByCategory returns the transactions belonging to one category, in the
// dataset's original order.
func (d HistoricalDataset) ByCategory(c Category) []Transaction {
	var out []Transaction
	for _, txn := range d.Transactions {
		if txn.Category == c {
			out = append(out, txn)
		}
	}
	return out
}

// ByDirection returns the transactions moving in one direction.
func (d HistoricalDataset) ByDirection(dir Direction) []Transaction {
	var out []Transaction
	for _, txn := range d.Transactions {
		if txn.Direction == dir {
			out = append(out, txn)
		}
	}
	return out
}

// NetBalance returns the opening balance plus the signed sum of all
// transactions, i.e. the current cash position implied by the history.
func (d HistoricalDataset) NetBalance() decimal.Decimal {
	balance := d.OpeningBalance
	for _, txn := range d.Transactions {
		balance = balance.Add(txn.Signed())
	}
	return balance
}
