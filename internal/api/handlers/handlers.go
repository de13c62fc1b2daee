// Package handlers implements the HTTP endpoints of the settlement API:
// synchronous and queued settlement submission, ledger inspection, and job
// status queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/exchange-settler/internal/api/middleware"
	"github.com/dvloznov/exchange-settler/internal/jobs"
	"github.com/dvloznov/exchange-settler/internal/ledger"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

// SettlementsHandler handles settlement submission endpoints.
type SettlementsHandler struct {
	service   *settlement.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSettlementsHandler creates a new settlements handler.
func NewSettlementsHandler(service *settlement.Service, publisher jobs.Publisher, log zerolog.Logger) *SettlementsHandler {
	return &SettlementsHandler{
		service:   service,
		publisher: publisher,
		log:       log,
	}
}

// settlementResponse is the caller-facing summary of one completed run.
type settlementResponse struct {
	RecordID        string                 `json:"record_id"`
	Status          string                 `json:"status"`
	Transaction     settlement.Transaction `json:"transaction"`
	FiatAmount      float64                `json:"fiat_amount"`
	Fee             float64                `json:"fee"`
	Total           float64                `json:"total"`
	AppliedRate     float64                `json:"applied_rate"`
	StorageLocation string                 `json:"storage_location"`
	PersistedAt     time.Time              `json:"persisted_at"`
}

// Settle handles POST /api/settlements. The transaction is run through the
// pipeline synchronously; the response carries the enriched run summary.
func (h *SettlementsHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var tx settlement.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.service.Settle(r.Context(), &tx)
	if err != nil {
		middleware.WriteError(w, statusForError(err), err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, settlementResponse{
		RecordID:        state.RecordID,
		Status:          state.Status,
		Transaction:     *state.Transaction,
		FiatAmount:      state.FiatAmount,
		Fee:             state.Fee,
		Total:           state.Total,
		AppliedRate:     state.AppliedRate,
		StorageLocation: state.StorageLocation,
		PersistedAt:     state.PersistedAt,
	})
}

// Enqueue handles POST /api/settlements/enqueue. The transaction is wrapped
// in a job and queued; business validation happens when the worker runs it.
func (h *SettlementsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var tx settlement.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job := jobs.NewSettleTransactionJob(tx)
	if err := h.publisher.PublishSettleTransaction(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue settlement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue settlement job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", tx.UserID).Msg("Settlement job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// statusForError maps a pipeline failure onto an HTTP status: rejected
// input is the caller's fault, an unknown user is an authentication
// failure, and a sink failure means the upstream store is unavailable.
func statusForError(err error) int {
	switch {
	case errors.Is(err, settlement.ErrMissingTransaction),
		errors.Is(err, settlement.ErrInvalidUser),
		errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, settlement.ErrStorageFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// LedgerHandler handles ledger inspection endpoints.
type LedgerHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(store ledger.Store, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		store: store,
		log:   log,
	}
}

// ListRecords handles GET /api/ledger.
func (h *LedgerHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list ledger records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list ledger records")
		return
	}

	if records == nil {
		records = []ledger.Record{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	if jobsList == nil {
		jobsList = []*jobs.SettleTransactionJob{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
