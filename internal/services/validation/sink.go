package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// Sink consumes the result queue and applies verdicts to the job store
// under the terminal-absorbing rule. It is the only writer of job status
// after creation.
type Sink struct {
	jobs   interfaces.JobStore
	events interfaces.EventService
	logger arbor.ILogger
}

// NewSink creates the result-queue consumer.
func NewSink(jobs interfaces.JobStore, events interfaces.EventService, logger arbor.ILogger) *Sink {
	return &Sink{
		jobs:   jobs,
		events: events,
		logger: logger,
	}
}

// Handle applies one verdict. Malformed payloads and unknown job ids are
// dropped; store failures leave the message for redelivery.
func (s *Sink) Handle(ctx context.Context, body []byte) error {
	var result models.ValidationResult
	if err := json.Unmarshal(body, &result); err != nil {
		// Includes unknown status variants rejected by the tagged decoder.
		s.logger.Warn().Err(err).Msg("Dropping malformed validation result")
		return nil
	}

	if !result.Status.IsTerminal() {
		// Only terminal verdicts belong on the result queue; anything
		// else would move a Pending job sideways.
		s.logger.Warn().
			Str("job_id", result.JobID).
			Str("status", string(result.Status)).
			Msg("Dropping non-terminal verdict")
		return nil
	}

	changed, err := s.jobs.CompareAndSetStatus(ctx, result.JobID, result.Status)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().
				Str("job_id", result.JobID).
				Str("status", string(result.Status)).
				Msg("Dropping verdict for unknown job")
			return nil
		}
		return fmt.Errorf("failed to apply verdict for job %s: %w", result.JobID, err)
	}

	if !changed {
		// Redelivered or late verdict against an already-terminal job.
		s.logger.Debug().
			Str("job_id", result.JobID).
			Str("status", string(result.Status)).
			Msg("Verdict ignored, job already settled")
		return nil
	}

	s.logger.Info().
		Str("job_id", result.JobID).
		Str("status", string(result.Status)).
		Msg("Job reached terminal status")

	if s.events != nil {
		job, err := s.jobs.Get(ctx, result.JobID)
		if err == nil {
			s.events.Publish(ctx, interfaces.Event{
				Type:    interfaces.EventJobTerminal,
				Payload: job,
			})
		}
	}

	return nil
}

// Ensure Sink implements the QueueConsumer interface
var _ interfaces.QueueConsumer = (*Sink)(nil)
