package progress

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/interfaces"
)

// Reporter is a job-scoped progress reporter that must be closed when the job ends
type Reporter interface {
	interfaces.ProgressReporter
	Close()
}

// Factory picks the progress transport for each job
type Factory struct {
	defaultURL string
	timeout    time.Duration
	queueSize  int
	publisher  Publisher
	prefix     string
	logger     arbor.ILogger
}

// NewFactory builds a factory from callback config. publisher may be nil when NATS is not configured.
func NewFactory(callback common.CallbackConfig, publisher Publisher, prefix string, logger arbor.ILogger) *Factory {
	timeout, _ := common.ParseDuration(callback.ProgressTimeout)
	return &Factory{
		defaultURL: callback.URL,
		timeout:    timeout,
		queueSize:  callback.QueueSize,
		publisher:  publisher,
		prefix:     prefix,
		logger:     logger,
	}
}

// ForJob returns the reporter for a job: a webhook to the job's callback URL
// (or the configured default), else NATS when connected, else nil.
func (f *Factory) ForJob(callbackURL string) Reporter {
	url := callbackURL
	if url == "" {
		url = f.defaultURL
	}

	switch {
	case url != "":
		return NewWebhookReporter(url, f.timeout, f.queueSize, f.logger)
	case f.publisher != nil:
		return NewNATSReporter(f.publisher, f.prefix, f.logger)
	default:
		return nil
	}
}
