package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/bus"
	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/httpclient"
	"github.com/ternarybob/swarmcrew/internal/interfaces"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/models"
)

// ResultPath is appended to the callback URL when posting a finished job
const ResultPath = "/result"

// Publisher publishes a JSON document on a subject. Satisfied by *bus.Client.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// HTTPDeliverer POSTs the job result to "<callback>/result"
type HTTPDeliverer struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPDeliverer creates a deliverer for callbackURL
func NewHTTPDeliverer(callbackURL string, timeout time.Duration) *HTTPDeliverer {
	return &HTTPDeliverer{
		url:     strings.TrimRight(callbackURL, "/") + ResultPath,
		client:  httpclient.NewDefaultHTTPClient(0),
		timeout: timeout,
	}
}

// Deliver posts result once; failures are returned, not retried
func (d *HTTPDeliverer) Deliver(ctx context.Context, result *models.JobResult) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := httpclient.PostJSON(ctx, d.client, d.url, result); err != nil {
		metrics.ResultDeliveries.WithLabelValues("webhook", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("failed to send result callback: %w", err)
	}

	metrics.ResultDeliveries.WithLabelValues("webhook", metrics.OutcomeSuccess).Inc()
	return nil
}

// NATSDeliverer publishes the job result on "<prefix>.<job_id>.result"
type NATSDeliverer struct {
	publisher Publisher
	prefix    string
}

// NewNATSDeliverer creates a deliverer publishing under prefix
func NewNATSDeliverer(publisher Publisher, prefix string) *NATSDeliverer {
	return &NATSDeliverer{publisher: publisher, prefix: prefix}
}

// Deliver publishes result
func (d *NATSDeliverer) Deliver(ctx context.Context, result *models.JobResult) error {
	subject := bus.Subject(d.prefix, result.JobID, bus.KindResult)
	if err := d.publisher.PublishJSON(subject, result); err != nil {
		metrics.ResultDeliveries.WithLabelValues("nats", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("failed to publish result on %s: %w", subject, err)
	}

	metrics.ResultDeliveries.WithLabelValues("nats", metrics.OutcomeSuccess).Inc()
	return nil
}

// Factory picks the result destination for each deferred job
type Factory struct {
	defaultURL string
	timeout    time.Duration
	publisher  Publisher
	prefix     string
	logger     arbor.ILogger
}

// NewFactory builds a factory from callback config. publisher may be nil when NATS is not configured.
func NewFactory(callback common.CallbackConfig, publisher Publisher, prefix string, logger arbor.ILogger) *Factory {
	timeout, _ := common.ParseDuration(callback.ResultTimeout)
	return &Factory{
		defaultURL: callback.URL,
		timeout:    timeout,
		publisher:  publisher,
		prefix:     prefix,
		logger:     logger,
	}
}

// ForJob returns the deliverer for a job, or nil when the result has nowhere to go
func (f *Factory) ForJob(callbackURL string) interfaces.ResultDeliverer {
	url := callbackURL
	if url == "" {
		url = f.defaultURL
	}

	switch {
	case url != "":
		return NewHTTPDeliverer(url, f.timeout)
	case f.publisher != nil:
		return NewNATSDeliverer(f.publisher, f.prefix)
	default:
		return nil
	}
}
