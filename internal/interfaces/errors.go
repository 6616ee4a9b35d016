package interfaces

import (
	"errors"

	"github.com/ternarybob/curtail/internal/models"
)

// Shared sentinel errors. Handlers map these to HTTP statuses; the
// pipeline maps them to terminal verdicts.
var (
	// ErrInvalidInput is returned for malformed submissions (blank url,
	// oversize field, bad job id).
	ErrInvalidInput = models.ErrInvalidInput

	// ErrInvalidURL is returned for syntactically valid URLs with an
	// unsupported scheme.
	ErrInvalidURL = models.ErrInvalidURL

	// ErrNotFound is returned when a job id or short-url key is absent.
	ErrNotFound = errors.New("not found")

	// ErrKeyNotFound is returned when a cache key is absent from the
	// key/value store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNoMessage is returned when the queue is empty.
	ErrNoMessage = errors.New("no messages in queue")

	// ErrQueuePublish is returned when a message could not be published;
	// the orchestrator surfaces it synchronously as a failed enqueue.
	ErrQueuePublish = errors.New("queue publish failed")

	// ErrSafeBrowsing marks a non-deterministic safety probe outcome
	// after retries; the job stays Pending.
	ErrSafeBrowsing = errors.New("safe browsing check failed")
)
