// Package store archives generated forecast runs in SQLite so past
// projections can be listed and compared against what actually happened.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/fincast-io/fincast/internal/domain"
)

// ErrNotFound is returned when a run ID has no archived forecast.
var ErrNotFound = errors.New("forecast run not found")

// Store is the SQLite-backed forecast archive.
type Store struct {
	db *sql.DB
}

// Migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id              TEXT PRIMARY KEY,
			company         TEXT NOT NULL,
			horizon_weeks   INTEGER NOT NULL,
			generated_at    TEXT NOT NULL,
			current_balance REAL NOT NULL,
			final_balance   REAL NOT NULL,
			minimum_balance REAL NOT NULL,
			accuracy        REAL,
			payload         TEXT NOT NULL,
			archived_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_company ON forecast_runs(company, generated_at)`,
	}
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun archives one generated forecast.
func (s *Store) SaveRun(f domain.Forecast) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding forecast %s: %w", f.ID, err)
	}

	var accuracy any
	if f.ModelAccuracy != nil {
		accuracy = *f.ModelAccuracy
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO forecast_runs
		(id, company, horizon_weeks, generated_at, current_balance, final_balance, minimum_balance, accuracy, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID.String(), f.CompanyName, len(f.Points),
		f.GeneratedAt.UTC().Format(time.RFC3339),
		f.CurrentBalance, f.FinalBalance(), f.MinimumBalance(),
		accuracy, string(payload),
	)
	if err != nil {
		return fmt.Errorf("archiving forecast %s: %w", f.ID, err)
	}
	return nil
}

// GetRun loads an archived forecast by ID.
func (s *Store) GetRun(id uuid.UUID) (domain.Forecast, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM forecast_runs WHERE id = ?`, id.String()).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.Forecast{}, ErrNotFound
	}
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("loading forecast %s: %w", id, err)
	}

	var f domain.Forecast
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return domain.Forecast{}, fmt.Errorf("decoding forecast %s: %w", id, err)
	}
	return f, nil
}

// RunSummary is one row of the archive listing.
type RunSummary struct {
	ID             uuid.UUID `json:"id"`
	Company        string    `json:"company"`
	HorizonWeeks   int       `json:"horizon_weeks"`
	GeneratedAt    time.Time `json:"generated_at"`
	CurrentBalance float64   `json:"current_balance"`
	FinalBalance   float64   `json:"final_balance"`
	MinimumBalance float64   `json:"minimum_balance"`
	Accuracy       *float64  `json:"accuracy,omitempty"`
}

// RecentRuns lists the newest archived runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, company, horizon_weeks, generated_at, current_balance, final_balance, minimum_balance, accuracy
		FROM forecast_runs ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var (
			run       RunSummary
			id, genAt string
			accuracy  sql.NullFloat64
		)
		if err := rows.Scan(&id, &run.Company, &run.HorizonWeeks, &genAt, &run.CurrentBalance, &run.FinalBalance, &run.MinimumBalance, &accuracy); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt run id %q: %w", id, err)
		}
		if run.GeneratedAt, err = time.Parse(time.RFC3339, genAt); err != nil {
			return nil, fmt.Errorf("corrupt timestamp %q: %w", genAt, err)
		}
		if accuracy.Valid {
			v := accuracy.Float64
			run.Accuracy = &v
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
