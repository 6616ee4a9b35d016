package interfaces

import (
	"context"

	"github.com/ternarybob/curtail/internal/models"
)

// JobStore keeps the authoritative ValidationJob state. Only the
// orchestrator (create) and the result sink (status updates) mutate it.
type JobStore interface {
	// Put records a new job. The job exists iff its id was ever enqueued.
	Put(ctx context.Context, job *models.ValidationJob) error

	// Get returns the job by id, ErrNotFound when absent.
	Get(ctx context.Context, id string) (*models.ValidationJob, error)

	// CompareAndSetStatus applies a status transition under the
	// terminal-absorbing rule: once a job is terminal, further transitions
	// are no-ops (first terminal wins). Returns whether the status changed.
	CompareAndSetStatus(ctx context.Context, id string, status models.URLSafety) (bool, error)
}
