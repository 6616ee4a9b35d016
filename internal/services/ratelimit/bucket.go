// Package ratelimit implements the token bucket that gates calls to the
// external safety API. One bucket is shared by all validation workers in
// the process; nobody ever blocks on it.
package ratelimit

import (
	"sync"
	"time"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
)

// TokenBucket holds Capacity tokens and puts RefillTokens back every
// RefillInterval. Refill is applied lazily on access, in whole intervals,
// so the observable behavior is the classical discrete bucket.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	tokens         int
	refillTokens   int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewTokenBucket creates a bucket from config, starting full.
func NewTokenBucket(config common.RateLimitConfig) *TokenBucket {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	refill := config.RefillTokens
	if refill <= 0 {
		refill = capacity
	}

	return &TokenBucket{
		capacity:       capacity,
		tokens:         capacity,
		refillTokens:   refill,
		refillInterval: common.ParseDuration(config.RefillInterval, time.Second),
		lastRefill:     time.Now(),
	}
}

// TryConsume takes one token if available. Non-blocking.
func (b *TokenBucket) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Status reports the current bucket state without consuming.
func (b *TokenBucket) Status() interfaces.RateLimiterStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	return interfaces.RateLimiterStatus{
		Remaining:     b.tokens,
		ResetAt:       b.lastRefill.Add(b.refillInterval),
		LimitExceeded: b.tokens <= 0,
	}
}

// refill credits whole elapsed intervals. Caller holds the lock.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillInterval {
		return
	}

	intervals := int(elapsed / b.refillInterval)
	b.tokens += intervals * b.refillTokens
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * b.refillInterval)
}

// Ensure TokenBucket implements the RateLimiter interface
var _ interfaces.RateLimiter = (*TokenBucket)(nil)
