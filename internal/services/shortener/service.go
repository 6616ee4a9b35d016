// Package shortener commits validated URLs as short links and resolves
// short keys back to their targets.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// Service owns the hash-to-URL mapping. A link exists only after its
// validation job settled Safe; commits are idempotent because the hash is
// a pure function of the canonical URL.
type Service struct {
	shortURLs interfaces.ShortURLStorage
	logger    arbor.ILogger
}

// NewService creates the shortener service.
func NewService(shortURLs interfaces.ShortURLStorage, logger arbor.ILogger) *Service {
	return &Service{
		shortURLs: shortURLs,
		logger:    logger,
	}
}

// CommitFromJob persists the short link for a Safe job. Non-Safe jobs
// are ignored so the same call site can observe any terminal status.
func (s *Service) CommitFromJob(ctx context.Context, job *models.ValidationJob) (*models.ShortURL, error) {
	if job == nil || job.Status != models.SafetySafe {
		return nil, nil
	}

	shortURL := &models.ShortURL{
		Hash:      models.HashURL(job.URL),
		URL:       job.URL,
		JobID:     job.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.shortURLs.Save(ctx, shortURL); err != nil {
		return nil, fmt.Errorf("failed to commit short url: %w", err)
	}

	s.logger.Info().
		Str("hash", shortURL.Hash).
		Str("url", shortURL.URL).
		Str("job_id", job.ID).
		Msg("Short URL committed")

	return shortURL, nil
}

// Resolve returns the target for a short key, ErrNotFound when the key
// was never committed.
func (s *Service) Resolve(ctx context.Context, hash string) (*models.ShortURL, error) {
	if hash == "" {
		return nil, interfaces.ErrInvalidInput
	}
	shortURL, err := s.shortURLs.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve short url %s: %w", hash, err)
	}
	return shortURL, nil
}

// TerminalJobHandler returns the event handler that commits short links
// when validation jobs settle. Wired to the job-terminal event at startup.
func (s *Service) TerminalJobHandler() interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		job, ok := event.Payload.(*models.ValidationJob)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event.Payload)
		}
		_, err := s.CommitFromJob(ctx, job)
		return err
	}
}
