package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/models"
	"github.com/ternarybob/swarmcrew/internal/services/workers"
)

// JobHandler handles crew job execution requests
type JobHandler struct {
	runner      JobRunner
	credentials CredentialChecker
	logger      arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(runner JobRunner, credentials CredentialChecker, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		runner:      runner,
		credentials: credentials,
		logger:      logger,
	}
}

// ExecuteHandler handles POST /execute.
// The crew runs to completion before responding; a failed job is still a 200 with success=false.
func (h *JobHandler) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.readJob(w, r)
	if !ok {
		return
	}

	h.logger.Info().
		Str("job_id", job.JobID).
		Str("swarm_id", job.SwarmID).
		Msg("Executing job")

	result := h.runner.Execute(r.Context(), job)

	h.logger.Info().
		Str("job_id", job.JobID).
		Bool("success", result.Success).
		Float64("total_cost_usd", result.TotalCostUSD).
		Msg("Job finished")

	WriteJSON(w, http.StatusOK, result)
}

// ExecuteAsyncHandler handles POST /execute/async.
// The job is queued and the result is delivered to the callback destination later.
func (h *JobHandler) ExecuteAsyncHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.readJob(w, r)
	if !ok {
		return
	}

	if err := h.runner.Enqueue(job); err != nil {
		if errors.Is(err, workers.ErrQueueFull) || errors.Is(err, workers.ErrPoolStopped) {
			WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to queue job")
		WriteError(w, http.StatusInternalServerError, "Failed to queue job")
		return
	}

	WriteJSON(w, http.StatusOK, models.QueuedResponse{
		Status:  "queued",
		JobID:   job.JobID,
		Message: "Job queued for processing",
	})
}

// readJob decodes and validates the job and confirms the provider is usable.
// It writes the error response and returns false when the job must not run.
func (h *JobHandler) readJob(w http.ResponseWriter, r *http.Request) (*models.JobInput, bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return nil, false
	}

	var job models.JobInput
	if err := DecodeJSON(w, r, &job); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	if err := job.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	if h.credentials != nil {
		if err := h.credentials.CheckCredentials(); err != nil {
			h.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Agent provider not configured")
			WriteError(w, http.StatusInternalServerError, err.Error())
			return nil, false
		}
	}

	return &job, true
}
