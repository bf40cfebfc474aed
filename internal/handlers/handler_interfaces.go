package handlers

import (
	"context"

	"github.com/ternarybob/swarmcrew/internal/models"
)

// JobRunner runs crew jobs inline or deferred.
type JobRunner interface {
	Execute(ctx context.Context, job *models.JobInput) *models.JobResult
	Enqueue(job *models.JobInput) error
}

// CredentialChecker reports whether the agent provider can be called at all.
type CredentialChecker interface {
	CheckCredentials() error
}
