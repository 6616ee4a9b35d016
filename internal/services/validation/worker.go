package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// rateLimitedRequeueDelay is how long a SAFETY message waits before it
// becomes visible again after a token-bucket refusal.
const rateLimitedRequeueDelay = time.Second

// Worker consumes the work queue and executes validation steps. The
// REACHABILITY step either advances the message to SAFETY or emits an
// Unreachable verdict; the SAFETY step emits Safe or Unsafe. Verdicts go
// to the result queue, never directly to the job store.
type Worker struct {
	workQueue   interfaces.Queue
	resultQueue interfaces.Queue
	reachProber interfaces.ReachabilityProber
	safety      interfaces.SafetyProber
	limiter     interfaces.RateLimiter
	retry       *common.RetryPolicy
	logger      arbor.ILogger
}

// NewWorker creates a validation worker.
func NewWorker(
	workQueue interfaces.Queue,
	resultQueue interfaces.Queue,
	reachProber interfaces.ReachabilityProber,
	safety interfaces.SafetyProber,
	limiter interfaces.RateLimiter,
	retryConfig common.RetryConfig,
	logger arbor.ILogger,
) *Worker {
	return &Worker{
		workQueue:   workQueue,
		resultQueue: resultQueue,
		reachProber: reachProber,
		safety:      safety,
		limiter:     limiter,
		retry:       common.NewRetryPolicy(retryConfig, func(err error) bool { return err != nil }),
		logger:      logger,
	}
}

// Handle processes one work-queue message. A nil return acknowledges it;
// an error leaves it for redelivery.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg models.ValidationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// Malformed payloads can never succeed; drop them.
		w.logger.Warn().Err(err).Msg("Dropping malformed validation message")
		return nil
	}

	switch msg.Step {
	case models.StepReachability:
		return w.handleReachability(ctx, &msg)
	case models.StepSafety:
		return w.handleSafety(ctx, &msg, body)
	default:
		w.logger.Warn().
			Str("job_id", msg.ID).
			Str("step", string(msg.Step)).
			Msg("Dropping message with unknown validation step")
		return nil
	}
}

func (w *Worker) handleReachability(ctx context.Context, msg *models.ValidationMessage) error {
	verdict, err := w.reachProber.Probe(ctx, msg.URL)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Non-network fault in the probe itself.
		w.logger.Error().Err(err).Str("job_id", msg.ID).Msg("Reachability probe failed")
		return w.publishResult(ctx, msg.ID, models.SafetyError)
	}

	if !verdict.Reachable {
		w.logger.Info().
			Str("job_id", msg.ID).
			Str("url", msg.URL).
			Str("error_type", string(verdict.ErrorType)).
			Int("status", verdict.StatusCode).
			Msg("URL unreachable")
		return w.publishResult(ctx, msg.ID, models.SafetyUnreachable)
	}

	// Reachable: advance the same message to the safety step.
	next := msg.WithStep(models.StepSafety)
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal safety step message: %w", err)
	}
	if err := w.workQueue.Enqueue(ctx, body); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrQueuePublish, err)
	}

	w.logger.Debug().
		Str("job_id", msg.ID).
		Int("status", verdict.StatusCode).
		Msg("URL reachable, advancing to safety step")
	return nil
}

func (w *Worker) handleSafety(ctx context.Context, msg *models.ValidationMessage, body []byte) error {
	// Token-bucket refusal: put the message back with a short delay and
	// move on. The worker never blocks on the limiter.
	if !w.limiter.TryConsume() {
		w.logger.Debug().
			Str("job_id", msg.ID).
			Msg("Rate limited, re-enqueueing safety check")
		if err := w.workQueue.EnqueueWithDelay(ctx, body, rateLimitedRequeueDelay); err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrQueuePublish, err)
		}
		return nil
	}

	var safe bool
	err := w.retry.Do(ctx, func() error {
		s, cerr := w.safety.Check(ctx, msg.URL)
		if cerr != nil {
			return cerr
		}
		safe = s
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Retries exhausted without a deterministic answer: drop the
		// message and leave the job Pending rather than guess.
		w.logger.Error().
			Err(err).
			Str("job_id", msg.ID).
			Str("url", msg.URL).
			Msg("Safety check failed after retries, job stays pending")
		return nil
	}

	status := models.SafetySafe
	if !safe {
		status = models.SafetyUnsafe
	}

	w.logger.Info().
		Str("job_id", msg.ID).
		Str("url", msg.URL).
		Str("status", string(status)).
		Msg("Safety check complete")

	return w.publishResult(ctx, msg.ID, status)
}

// publishResult puts a terminal verdict on the result queue. A publish
// failure bubbles up so the work message is redelivered.
func (w *Worker) publishResult(ctx context.Context, jobID string, status models.URLSafety) error {
	result := models.ValidationResult{JobID: jobID, Status: status}
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}
	if err := w.resultQueue.Enqueue(ctx, body); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrQueuePublish, err)
	}
	return nil
}

// Ensure Worker implements the QueueConsumer interface
var _ interfaces.QueueConsumer = (*Worker)(nil)
