package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/httpclient"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/models"
)

const transportWebhook = "webhook"

// WebhookReporter POSTs each progress update to a callback URL.
// Updates are queued and delivered in order by a single goroutine, so Notify never
// blocks the crew. When the queue is full the update is dropped.
type WebhookReporter struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  arbor.ILogger

	mu      sync.RWMutex
	closed  bool
	updates chan models.ProgressUpdate
	done    chan struct{}
}

// NewWebhookReporter starts the delivery goroutine for url.
// timeout bounds each POST; queueSize bounds pending updates.
func NewWebhookReporter(url string, timeout time.Duration, queueSize int, logger arbor.ILogger) *WebhookReporter {
	if queueSize <= 0 {
		queueSize = 1
	}

	r := &WebhookReporter{
		url:     url,
		client:  httpclient.NewDefaultHTTPClient(0),
		timeout: timeout,
		logger:  logger,
		updates: make(chan models.ProgressUpdate, queueSize),
		done:    make(chan struct{}),
	}

	common.SafeGo(logger, "progress-webhook", r.run)
	return r
}

// Notify queues update for delivery
func (r *WebhookReporter) Notify(update models.ProgressUpdate) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.updates <- update:
	default:
		metrics.ProgressDeliveries.WithLabelValues(transportWebhook, metrics.OutcomeDropped).Inc()
		r.logger.Warn().
			Str("job_id", update.JobID).
			Int("progress", update.Progress).
			Msg("Progress queue full, update dropped")
	}
}

// Close stops accepting updates and waits for queued ones to be attempted
func (r *WebhookReporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.updates)
	r.mu.Unlock()

	<-r.done
}

func (r *WebhookReporter) run() {
	defer close(r.done)
	for update := range r.updates {
		r.deliver(update)
	}
}

func (r *WebhookReporter) deliver(update models.ProgressUpdate) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := httpclient.PostJSON(ctx, r.client, r.url, update); err != nil {
		metrics.ProgressDeliveries.WithLabelValues(transportWebhook, metrics.OutcomeFailed).Inc()
		r.logger.Warn().
			Err(err).
			Str("job_id", update.JobID).
			Int("progress", update.Progress).
			Msg("Failed to send progress callback")
		return
	}

	metrics.ProgressDeliveries.WithLabelValues(transportWebhook, metrics.OutcomeSuccess).Inc()
}
