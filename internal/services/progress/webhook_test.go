package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/models"
)

type callbackRecorder struct {
	mu      sync.Mutex
	updates []models.ProgressUpdate
}

func (c *callbackRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update models.ProgressUpdate
		_ = json.NewDecoder(r.Body).Decode(&update)
		c.mu.Lock()
		c.updates = append(c.updates, update)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *callbackRecorder) progress() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	values := make([]int, 0, len(c.updates))
	for _, u := range c.updates {
		values = append(values, u.Progress)
	}
	return values
}

func update(progress int) models.ProgressUpdate {
	return models.ProgressUpdate{
		JobID:    "J1",
		Stage:    models.ProgressStageRouting,
		AgentID:  "router",
		Message:  "Analyzing and classifying the support ticket",
		Progress: progress,
	}
}

func TestWebhookReporter_DeliversInOrder(t *testing.T) {
	recorder := &callbackRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK))
	defer server.Close()

	r := NewWebhookReporter(server.URL, time.Second, 8, arbor.NewLogger())
	for _, p := range []int{10, 40, 70, 100} {
		r.Notify(update(p))
	}
	r.Close()

	assert.Equal(t, []int{10, 40, 70, 100}, recorder.progress())
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, "J1", recorder.updates[0].JobID)
	assert.Equal(t, models.ProgressStageRouting, recorder.updates[0].Stage)
}

func TestWebhookReporter_FailingEndpointDoesNotBlock(t *testing.T) {
	recorder := &callbackRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusInternalServerError))
	defer server.Close()

	r := NewWebhookReporter(server.URL, time.Second, 8, arbor.NewLogger())
	r.Notify(update(10))
	r.Notify(update(40))
	r.Close()

	assert.Equal(t, []int{10, 40}, recorder.progress())
}

func TestWebhookReporter_UnreachableEndpoint(t *testing.T) {
	r := NewWebhookReporter("http://127.0.0.1:1/progress", 200*time.Millisecond, 4, arbor.NewLogger())

	start := time.Now()
	r.Notify(update(10))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	r.Close()
}

func TestWebhookReporter_DropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	recorder := &callbackRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		recorder.handler(http.StatusOK)(w, r)
	}))
	defer server.Close()

	r := NewWebhookReporter(server.URL, 5*time.Second, 1, arbor.NewLogger())

	// The first update is picked up by the delivery goroutine and blocks in the handler.
	r.Notify(update(10))
	require.Eventually(t, func() bool { return len(r.updates) == 0 }, time.Second, 5*time.Millisecond)

	r.Notify(update(40))
	r.Notify(update(70))
	r.Notify(update(100))

	close(release)
	r.Close()

	assert.Equal(t, []int{10, 40}, recorder.progress())
}

func TestWebhookReporter_NotifyAfterCloseIgnored(t *testing.T) {
	recorder := &callbackRecorder{}
	server := httptest.NewServer(recorder.handler(http.StatusOK))
	defer server.Close()

	r := NewWebhookReporter(server.URL, time.Second, 4, arbor.NewLogger())
	r.Close()
	r.Notify(update(10))
	r.Close()

	assert.Empty(t, recorder.progress())
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
	err      error
}

func (p *fakePublisher) PublishJSON(subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, v)
	return nil
}

func TestNATSReporter_Notify(t *testing.T) {
	publisher := &fakePublisher{}
	r := NewNATSReporter(publisher, "swarmcrew.jobs", arbor.NewLogger())

	r.Notify(update(10))
	r.Close()

	require.Len(t, publisher.subjects, 1)
	assert.Equal(t, "swarmcrew.jobs.J1.progress", publisher.subjects[0])
	assert.Equal(t, update(10), publisher.payloads[0])
}

func TestNATSReporter_PublishErrorSwallowed(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("nats: connection closed")}
	r := NewNATSReporter(publisher, "swarmcrew.jobs", arbor.NewLogger())

	assert.NotPanics(t, func() { r.Notify(update(10)) })
}

func TestFactory_ForJob(t *testing.T) {
	callback := common.CallbackConfig{ProgressTimeout: "5s", QueueSize: 4}
	logger := arbor.NewLogger()

	assert.Nil(t, NewFactory(callback, nil, "swarmcrew.jobs", logger).ForJob(""))

	webhook := NewFactory(callback, &fakePublisher{}, "swarmcrew.jobs", logger).ForJob("http://backend/progress")
	require.IsType(t, &WebhookReporter{}, webhook)
	assert.Equal(t, "http://backend/progress", webhook.(*WebhookReporter).url)
	webhook.Close()

	nats := NewFactory(callback, &fakePublisher{}, "swarmcrew.jobs", logger).ForJob("")
	assert.IsType(t, &NATSReporter{}, nats)

	callback.URL = "http://configured"
	fallback := NewFactory(callback, nil, "swarmcrew.jobs", logger).ForJob("")
	require.IsType(t, &WebhookReporter{}, fallback)
	assert.Equal(t, "http://configured", fallback.(*WebhookReporter).url)
	fallback.Close()
}
