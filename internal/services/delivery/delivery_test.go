package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/httpclient"
	"github.com/ternarybob/swarmcrew/internal/models"
)

func sampleResult() *models.JobResult {
	return &models.JobResult{
		JobID:       "J1",
		Success:     true,
		FinalOutput: "APPROVED: Here is how to reset...",
		StageResults: []models.StageResult{
			{AgentRole: models.AgentRoleRouter, TaskName: models.TaskTicketClassification, Output: "TYPE:technical"},
		},
		TotalCostUSD: 0.05,
		ResultHash:   "ipfs://abc",
	}
}

func TestHTTPDeliverer_PostsToResultPath(t *testing.T) {
	var path string
	var got models.JobResult
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewHTTPDeliverer(server.URL+"/api/crew/", time.Second)
	require.NoError(t, d.Deliver(context.Background(), sampleResult()))

	assert.Equal(t, "/api/crew/result", path)
	assert.Equal(t, *sampleResult(), got)
}

func TestHTTPDeliverer_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewHTTPDeliverer(server.URL, time.Second).Deliver(context.Background(), sampleResult())
	var callbackErr *httpclient.CallbackError
	require.ErrorAs(t, err, &callbackErr)
	assert.Equal(t, http.StatusServiceUnavailable, callbackErr.StatusCode)
}

func TestHTTPDeliverer_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	err := NewHTTPDeliverer(server.URL, 50*time.Millisecond).Deliver(context.Background(), sampleResult())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakePublisher struct {
	subject string
	payload any
	err     error
}

func (p *fakePublisher) PublishJSON(subject string, v any) error {
	p.subject, p.payload = subject, v
	return p.err
}

func TestNATSDeliverer(t *testing.T) {
	publisher := &fakePublisher{}
	result := sampleResult()

	require.NoError(t, NewNATSDeliverer(publisher, "swarmcrew.jobs").Deliver(context.Background(), result))
	assert.Equal(t, "swarmcrew.jobs.J1.result", publisher.subject)
	assert.Same(t, result, publisher.payload)

	publisher.err = errors.New("nats: connection closed")
	assert.Error(t, NewNATSDeliverer(publisher, "swarmcrew.jobs").Deliver(context.Background(), result))
}

func TestFactory_ForJob(t *testing.T) {
	callback := common.CallbackConfig{ResultTimeout: "10s"}
	logger := arbor.NewLogger()

	assert.Nil(t, NewFactory(callback, nil, "p", logger).ForJob(""))

	d := NewFactory(callback, &fakePublisher{}, "p", logger).ForJob("http://backend")
	require.IsType(t, &HTTPDeliverer{}, d)
	assert.Equal(t, "http://backend/result", d.(*HTTPDeliverer).url)
	assert.Equal(t, 10*time.Second, d.(*HTTPDeliverer).timeout)

	assert.IsType(t, &NATSDeliverer{}, NewFactory(callback, &fakePublisher{}, "p", logger).ForJob(""))

	callback.URL = "http://configured"
	d = NewFactory(callback, nil, "p", logger).ForJob("")
	assert.Equal(t, "http://configured/result", d.(*HTTPDeliverer).url)
}
