package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure and carry no infrastructure dependency.

var (
	// Category errors
	ErrUnknownCategory    = errors.New("unknown cash flow category")
	ErrUnknownAgingBucket = errors.New("unknown receivable aging bucket")

	// Dataset errors
	ErrEmptyDataset   = errors.New("dataset contains no transactions")
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// Model errors
	ErrNotFitted      = errors.New("model has not been fitted")
	ErrSeriesTooShort = errors.New("series too short to fit model")
	ErrNoConvergence  = errors.New("no model order converged")
	ErrSingularMatrix = errors.New("design matrix is singular")

	// Ensemble errors
	ErrNoModelsFitted = errors.New("no base model fitted for category")
)
