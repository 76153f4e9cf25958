package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/engine"
	"github.com/fincast-io/fincast/internal/forecast/predictor"
	"github.com/fincast-io/fincast/internal/observability"
	"github.com/fincast-io/fincast/internal/store"
)

// ─── Requests ───────────────────────────────────────────────────────────────

type forecastRequest struct {
	CompanyName string                   `json:"company_name"`
	WeeksAhead  *int                     `json:"weeks_ahead"`
	Dataset     domain.HistoricalDataset `json:"dataset"`
	Adjustments map[string]float64       `json:"adjustments,omitempty"`
	Receivables predictor.AgingSchedule  `json:"receivables,omitempty"`
}

type scenarioRequest struct {
	Name        string                   `json:"name"`
	BaselineID  *uuid.UUID               `json:"baseline_id,omitempty"`
	Baseline    *domain.Forecast         `json:"baseline,omitempty"`
	Dataset     domain.HistoricalDataset `json:"dataset"`
	Adjustments map[string]float64       `json:"adjustments"`
}

type validateRequest struct {
	Forecast domain.Forecast          `json:"forecast"`
	Dataset  domain.HistoricalDataset `json:"dataset"`
}

// ─── Forecasts ──────────────────────────────────────────────────────────────

func (s *Server) handleGenerateForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	weeks := -1 // engine default
	if req.WeeksAhead != nil {
		if *req.WeeksAhead < 0 {
			writeError(w, http.StatusBadRequest, "weeks_ahead must not be negative")
			return
		}
		weeks = *req.WeeksAhead
	}

	forecast, err := s.engine.Generate(r.Context(), engine.Request{
		Dataset:     req.Dataset,
		CompanyName: req.CompanyName,
		WeeksAhead:  weeks,
		Adjustments: req.Adjustments,
		Receivables: req.Receivables,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	if s.archive != nil {
		saveErr := s.archive.SaveRun(forecast)
		observability.RecordStoreWrite(saveErr)
		if saveErr != nil {
			// The forecast itself succeeded; archiving is best-effort.
			s.log.Error().Err(saveErr).Stringer("id", forecast.ID).Msg("archiving forecast failed")
		}
	}

	writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleValidateForecast(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.validator.Validate(req.Forecast, req.Dataset))
}

// ─── Scenarios ──────────────────────────────────────────────────────────────

func (s *Server) handleGenerateScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "scenario name required")
		return
	}

	baseline, ok := s.resolveBaseline(w, req)
	if !ok {
		return
	}

	scenario, err := s.engine.GenerateScenario(r.Context(), baseline, req.Name, req.Adjustments, req.Dataset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

// resolveBaseline picks the inline baseline or loads one from the archive.
// Writes the error response itself and returns ok=false on failure.
func (s *Server) resolveBaseline(w http.ResponseWriter, req scenarioRequest) (domain.Forecast, bool) {
	switch {
	case req.Baseline != nil:
		return *req.Baseline, true
	case req.BaselineID != nil:
		if s.archive == nil {
			writeError(w, http.StatusBadRequest, "baseline_id requires the run archive, which is disabled")
			return domain.Forecast{}, false
		}
		baseline, err := s.archive.GetRun(*req.BaselineID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "baseline forecast not found")
			return domain.Forecast{}, false
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return domain.Forecast{}, false
		}
		return baseline, true
	default:
		writeError(w, http.StatusBadRequest, "either baseline or baseline_id required")
		return domain.Forecast{}, false
	}
}

// ─── Archive ────────────────────────────────────────────────────────────────

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	runs, err := s.archive.RecentRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	forecast, err := s.archive.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrInvalidHorizon),
		errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("forecast generation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
