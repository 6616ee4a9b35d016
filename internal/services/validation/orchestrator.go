// Package validation implements the asynchronous URL validation pipeline:
// the orchestrator accepts submissions, the worker runs the reachability
// and safety steps, and the sink applies terminal verdicts to the job store.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// Orchestrator is the submission-side entry point of the pipeline. It
// canonicalizes the URL, records a Pending job and enqueues the first
// validation step.
type Orchestrator struct {
	jobs      interfaces.JobStore
	workQueue interfaces.Queue
	logger    arbor.ILogger
}

// NewOrchestrator creates the submission service.
func NewOrchestrator(jobs interfaces.JobStore, workQueue interfaces.Queue, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		workQueue: workQueue,
		logger:    logger,
	}
}

// Enqueue validates and canonicalizes rawURL, creates a Pending job and
// publishes the REACHABILITY step. The returned job id is the caller's
// handle for polling. Canonicalization failures surface as ErrInvalidInput
// or ErrInvalidURL; publish failures as ErrQueuePublish.
func (o *Orchestrator) Enqueue(ctx context.Context, rawURL string) (string, error) {
	canonical, err := models.CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	jobID := common.NewJobID()
	now := time.Now().UTC()

	job := &models.ValidationJob{
		ID:        jobID,
		URL:       canonical,
		Status:    models.SafetyPending,
		CreatedAt: now,
	}
	if err := o.jobs.Put(ctx, job); err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}

	msg := models.NewValidationMessage(jobID, canonical)
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation message: %w", err)
	}

	if err := o.workQueue.Enqueue(ctx, body); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrQueuePublish, err)
	}

	o.logger.Info().
		Str("job_id", jobID).
		Str("url", canonical).
		Msg("Validation job enqueued")

	return jobID, nil
}

// Find returns the job for the given id, ErrNotFound when absent.
func (o *Orchestrator) Find(ctx context.Context, jobID string) (*models.ValidationJob, error) {
	if jobID == "" {
		return nil, interfaces.ErrInvalidInput
	}
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return job, nil
}
