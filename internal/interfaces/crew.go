package interfaces

import (
	"context"

	"github.com/ternarybob/swarmcrew/internal/models"
)

// Agent is the capability behind every crew stage: given a role and a task,
// produce free-text output. Output is opaque to the pipeline.
//
// Implementations may block on network round trips and must honour ctx
// cancellation. Any returned error fails the job at the active stage.
type Agent interface {
	Respond(ctx context.Context, role models.AgentRole, task models.AgentTask) (string, error)
}

// ProgressReporter receives progress updates for a single job.
// Notify is fire-and-forget: it must not block the pipeline and never
// reports delivery failures to the caller.
type ProgressReporter interface {
	Notify(update models.ProgressUpdate)
}

// ResultDeliverer hands the terminal result of a deferred job to its destination.
type ResultDeliverer interface {
	Deliver(ctx context.Context, result *models.JobResult) error
}
