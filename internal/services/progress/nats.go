package progress

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/bus"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/models"
)

const transportNATS = "nats"

// Publisher publishes a JSON document on a subject. Satisfied by *bus.Client.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// NATSReporter publishes progress on "<prefix>.<job_id>.progress".
// NATS publishes are buffered by the client, so Notify does not block on the network.
type NATSReporter struct {
	publisher Publisher
	prefix    string
	logger    arbor.ILogger
}

// NewNATSReporter creates a reporter publishing under prefix
func NewNATSReporter(publisher Publisher, prefix string, logger arbor.ILogger) *NATSReporter {
	return &NATSReporter{publisher: publisher, prefix: prefix, logger: logger}
}

// Notify publishes update, logging and discarding any failure
func (r *NATSReporter) Notify(update models.ProgressUpdate) {
	subject := bus.Subject(r.prefix, update.JobID, bus.KindProgress)
	if err := r.publisher.PublishJSON(subject, update); err != nil {
		metrics.ProgressDeliveries.WithLabelValues(transportNATS, metrics.OutcomeFailed).Inc()
		r.logger.Warn().
			Err(err).
			Str("subject", subject).
			Int("progress", update.Progress).
			Msg("Failed to publish progress update")
		return
	}
	metrics.ProgressDeliveries.WithLabelValues(transportNATS, metrics.OutcomeSuccess).Inc()
}

// Close is a no-op; the shared connection is owned by the app
func (r *NATSReporter) Close() {}
