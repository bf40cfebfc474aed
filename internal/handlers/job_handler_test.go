package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/models"
	"github.com/ternarybob/swarmcrew/internal/services/workers"
)

type stubRunner struct {
	result     *models.JobResult
	enqueueErr error
	executed   []*models.JobInput
	enqueued   []*models.JobInput
}

func (r *stubRunner) Execute(ctx context.Context, job *models.JobInput) *models.JobResult {
	r.executed = append(r.executed, job)
	return r.result
}

func (r *stubRunner) Enqueue(job *models.JobInput) error {
	r.enqueued = append(r.enqueued, job)
	return r.enqueueErr
}

type stubCredentials struct{ err error }

func (c stubCredentials) CheckCredentials() error { return c.err }

const validJob = `{"job_id":"J1","title":"Cannot log in","description":"Password reset link expired","requirements":"","swarm_id":"swarm-1"}`

func doRequest(handler http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestExecuteHandler_Success(t *testing.T) {
	runner := &stubRunner{result: &models.JobResult{
		JobID:        "J1",
		Success:      true,
		FinalOutput:  "APPROVED: Here is how to reset...",
		StageResults: []models.StageResult{},
		TotalCostUSD: 0.05,
		ResultHash:   "ipfs://abc",
	}}
	h := NewJobHandler(runner, stubCredentials{}, arbor.NewLogger())

	rec := doRequest(h.ExecuteHandler, http.MethodPost, validJob)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var result models.JobResult
	decodeBody(t, rec, &result)
	assert.Equal(t, *runner.result, result)

	require.Len(t, runner.executed, 1)
	assert.Equal(t, "swarm-1", runner.executed[0].SwarmID)
}

func TestExecuteHandler_FailedJobIsStill200(t *testing.T) {
	runner := &stubRunner{result: &models.JobResult{
		JobID:        "J1",
		Success:      false,
		FinalOutput:  "Error: model unavailable",
		StageResults: []models.StageResult{},
	}}
	h := NewJobHandler(runner, stubCredentials{}, arbor.NewLogger())

	rec := doRequest(h.ExecuteHandler, http.MethodPost, validJob)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []interface{}{}, body["stage_results"])
}

func TestExecuteHandler_ValidationErrors(t *testing.T) {
	h := NewJobHandler(&stubRunner{}, stubCredentials{}, arbor.NewLogger())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"job_id":`, "invalid request body"},
		{"missing title", `{"job_id":"J1","description":"d"}`, "title"},
		{"bad callback", `{"job_id":"J1","title":"t","description":"d","callback_url":"not a url"}`, "callback_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h.ExecuteHandler, http.MethodPost, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			decodeBody(t, rec, &body)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["error"], tt.want)
		})
	}
}

func TestExecuteHandler_MissingCredentials(t *testing.T) {
	runner := &stubRunner{}
	h := NewJobHandler(runner, stubCredentials{err: errors.New("claude API key not configured")}, arbor.NewLogger())

	rec := doRequest(h.ExecuteHandler, http.MethodPost, validJob)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "claude API key not configured", body["error"])
	assert.Empty(t, runner.executed)
}

func TestExecuteHandler_MethodNotAllowed(t *testing.T) {
	h := NewJobHandler(&stubRunner{}, nil, arbor.NewLogger())
	rec := doRequest(h.ExecuteHandler, http.MethodGet, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestExecuteAsyncHandler_Queued(t *testing.T) {
	runner := &stubRunner{}
	h := NewJobHandler(runner, stubCredentials{}, arbor.NewLogger())

	rec := doRequest(h.ExecuteAsyncHandler, http.MethodPost, validJob)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body models.QueuedResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, models.QueuedResponse{Status: "queued", JobID: "J1", Message: "Job queued for processing"}, body)
	require.Len(t, runner.enqueued, 1)
	assert.Empty(t, runner.executed)
}

func TestExecuteAsyncHandler_Saturated(t *testing.T) {
	for _, err := range []error{workers.ErrQueueFull, workers.ErrPoolStopped} {
		h := NewJobHandler(&stubRunner{enqueueErr: err}, stubCredentials{}, arbor.NewLogger())
		rec := doRequest(h.ExecuteAsyncHandler, http.MethodPost, validJob)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, err.Error())
	}

	h := NewJobHandler(&stubRunner{enqueueErr: errors.New("boom")}, stubCredentials{}, arbor.NewLogger())
	rec := doRequest(h.ExecuteAsyncHandler, http.MethodPost, validJob)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExecuteAsyncHandler_Invalid(t *testing.T) {
	runner := &stubRunner{}
	h := NewJobHandler(runner, stubCredentials{}, arbor.NewLogger())

	rec := doRequest(h.ExecuteAsyncHandler, http.MethodPost, `{"title":"t"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.enqueued)
}

func TestHealthHandler(t *testing.T) {
	h := NewStatusHandler(arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body models.HealthResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, common.GetVersion(), body.Version)
}
