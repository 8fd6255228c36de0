package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tripsmith/internal/domain"
	"tripsmith/internal/middleware"
)

type tripResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Itinerary   json.RawMessage `json:"itinerary,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

// GenerateTrip submits a generation job and waits for its terminal outcome.
// The response carries the finished itinerary; long waits are covered by the
// recovery protocol, not by the client retrying.
func (a *App) GenerateTrip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req domain.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Normalize(middleware.LocaleFromContext(r.Context()))

	orch := a.newOrchestrator()
	result, err := orch.Submit(r.Context(), req, userID)
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusOK, tripResponse{
		JobID:       result.ID,
		Status:      string(result.Status),
		Itinerary:   result.Response,
		CompletedAt: result.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (a *App) submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		a.error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "conflict", "a generation is already in flight")
	case errors.Is(err, domain.ErrBackendRejected):
		a.error(w, http.StatusBadGateway, "backend_rejected", err.Error())
	case errors.Is(err, domain.ErrGenerationFailed):
		a.error(w, http.StatusUnprocessableEntity, "generation_failed", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "timeout", "generation did not settle in time")
	case errors.Is(err, domain.ErrCancelled):
		a.error(w, http.StatusRequestTimeout, "cancelled", "submission cancelled")
	case errors.Is(err, domain.ErrChannel):
		a.error(w, http.StatusBadGateway, "channel_error", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", "submission failed")
	}
}

type jobCreateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobsCreate enqueues a generation job without waiting on it. Clients poll
// JobStatus afterwards.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req domain.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	jobID, err := a.Jobs.SubmitJob(r.Context(), req, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("trips: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, jobCreateResponse{JobID: jobID, Status: string(domain.JobStatusPending)})
}

type jobStatusResponse struct {
	JobID       string            `json:"job_id"`
	Status      string            `json:"status"`
	Progress    domain.StageModel `json:"progress"`
	Itinerary   json.RawMessage   `json:"itinerary,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   string            `json:"created_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

// JobStatus reports the current state of one job, scoped to its requester.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil || job.RequesterID != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	model := domain.ProjectStages(job.Progress)
	if job.Status == domain.JobStatusFailed {
		model = model.WithFailure()
	}
	resp := jobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  model,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.Status == domain.JobStatusCompleted {
		resp.Itinerary = job.Response
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	a.json(w, http.StatusOK, resp)
}

type estimateResponse struct {
	Estimate float64 `json:"estimate"`
	Currency string  `json:"currency"`
}

// currencyByCountry covers the markets the product launched in; everything
// else quotes USD.
var currencyByCountry = map[string]string{
	"US": "USD", "GB": "GBP", "FR": "EUR", "DE": "EUR", "ES": "EUR",
	"IT": "EUR", "JP": "JPY", "AU": "AUD", "CA": "CAD", "ID": "IDR",
	"SG": "SGD",
}

// EstimateTrip returns an advisory cost estimate for a possibly partial
// request. It degrades to a local formula under rate limiting and never
// fails hard on throttling.
func (a *App) EstimateTrip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req domain.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Destination) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "destination is required")
		return
	}
	req.Normalize(middleware.LocaleFromContext(r.Context()))

	value, err := a.Estimator.Estimate(r.Context(), req)
	if err != nil {
		a.Logger.Error().Err(err).Str("destination", req.Destination).Msg("trips: estimate failed")
		a.error(w, http.StatusBadGateway, "estimate_failed", "could not produce an estimate")
		return
	}

	currency := "USD"
	if country := middleware.CountryFromContext(r.Context()); country != "" {
		if c, ok := currencyByCountry[country]; ok {
			currency = c
		}
	}
	a.json(w, http.StatusOK, estimateResponse{Estimate: value, Currency: currency})
}
