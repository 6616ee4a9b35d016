package common

import (
	"context"
	"time"
)

// RetryPolicy executes an operation up to MaxAttempts times, sleeping
// WaitDuration between attempts. Only errors the predicate marks as
// retryable trigger another attempt; the last error always propagates.
type RetryPolicy struct {
	MaxAttempts  int
	WaitDuration time.Duration
	Retryable    func(error) bool
}

// NewRetryPolicy builds a policy from config. A nil predicate retries on
// every error.
func NewRetryPolicy(config RetryConfig, retryable func(error) bool) *RetryPolicy {
	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &RetryPolicy{
		MaxAttempts:  attempts,
		WaitDuration: ParseDuration(config.WaitDuration, 500*time.Millisecond),
		Retryable:    retryable,
	}
}

// Do runs fn until it succeeds, exhausts attempts, or hits a non-retryable
// error. The wait between attempts respects context cancellation.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.WaitDuration):
		}
	}
}
