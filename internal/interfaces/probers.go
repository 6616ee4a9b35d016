package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/curtail/internal/models"
)

// ReachabilityProber answers whether a canonical URL responds over HTTP.
// Every verdict, reachable or not, is cacheable.
type ReachabilityProber interface {
	Probe(ctx context.Context, canonicalURL string) (*models.ReachabilityVerdict, error)
}

// SafetyProber consults the external threat-list service.
// True means no threat entry matched.
type SafetyProber interface {
	Check(ctx context.Context, canonicalURL string) (bool, error)
}

// RateLimiterStatus is a point-in-time snapshot of the token bucket.
type RateLimiterStatus struct {
	Remaining     int       `json:"remaining"`
	ResetAt       time.Time `json:"resetAt"`
	LimitExceeded bool      `json:"limitExceeded"`
}

// RateLimiter is a non-blocking token bucket shared by all validation
// workers in the process. No caller ever waits on it.
type RateLimiter interface {
	TryConsume() bool
	Status() RateLimiterStatus
}
