// Package reachability probes whether a URL answers over HTTP before any
// safety check is spent on it.
package reachability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/httpclient"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/cache"
)

// Prober issues a HEAD probe (GET fallback on 405/501) and classifies the
// outcome. Every verdict, reachable or not, is cached.
type Prober struct {
	client       *http.Client
	cache        *cache.Service
	cacheEnabled bool
	cacheTTL     time.Duration
	userAgent    string
	retry        *common.RetryPolicy
	logger       arbor.ILogger
}

// NewProber creates a prober from config.
func NewProber(config common.ReachabilityConfig, retryConfig common.RetryConfig, cacheService *cache.Service, logger arbor.ILogger) *Prober {
	timeout := common.ParseDuration(config.Timeout, 5*time.Second)
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "UrlShortener-Bot/1.0"
	}

	return &Prober{
		client:       httpclient.NewProbeClient(timeout),
		cache:        cacheService,
		cacheEnabled: config.CacheEnabled,
		cacheTTL:     common.ParseDuration(config.CacheTTL, 10*time.Minute),
		userAgent:    userAgent,
		retry:        common.NewRetryPolicy(retryConfig, IsRetryableNetworkError),
		logger:       logger,
	}
}

// Probe returns the reachability verdict for a canonical URL, consulting
// the verdict cache first. Transport failures are retried under the
// bounded policy, then classified; only non-network faults propagate.
func (p *Prober) Probe(ctx context.Context, canonicalURL string) (*models.ReachabilityVerdict, error) {
	key := cache.KeyReachability(canonicalURL)

	if p.cacheEnabled {
		var cached models.ReachabilityVerdict
		if p.cache.GetJSON(ctx, key, &cached) {
			p.logger.Debug().Str("url", canonicalURL).Msg("Reachability cache hit")
			return &cached, nil
		}
	}

	var verdict *models.ReachabilityVerdict
	err := p.retry.Do(ctx, func() error {
		v, perr := p.probeOnce(ctx, canonicalURL)
		if perr != nil {
			return perr
		}
		verdict = v
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// Retries exhausted on a transport error: classify it as a verdict
		verdict = &models.ReachabilityVerdict{
			Reachable: false,
			ErrorType: classifyNetworkError(err),
		}
	}

	if p.cacheEnabled {
		p.cache.PutJSON(ctx, key, verdict, p.cacheTTL)
	}

	p.logger.Debug().
		Str("url", canonicalURL).
		Bool("reachable", verdict.Reachable).
		Int("status", verdict.StatusCode).
		Str("error_type", string(verdict.ErrorType)).
		Msg("Reachability probe complete")

	return verdict, nil
}

// probeOnce performs one HEAD attempt, falling back to GET exactly once
// when the target rejects HEAD with 405 or 501.
func (p *Prober) probeOnce(ctx context.Context, canonicalURL string) (*models.ReachabilityVerdict, error) {
	start := time.Now()
	resp, err := p.request(ctx, http.MethodHead, canonicalURL)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = p.request(ctx, http.MethodGet, canonicalURL)
		if err != nil {
			return nil, err
		}
		resp.Body.Close()
	}

	elapsed := time.Since(start).Milliseconds()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &models.ReachabilityVerdict{
			Reachable:      true,
			StatusCode:     resp.StatusCode,
			ResponseTimeMs: elapsed,
			ContentType:    resp.Header.Get("Content-Type"),
		}, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return &models.ReachabilityVerdict{
			Reachable:      true,
			StatusCode:     resp.StatusCode,
			ResponseTimeMs: elapsed,
		}, nil
	default:
		return &models.ReachabilityVerdict{
			Reachable:      false,
			StatusCode:     resp.StatusCode,
			ResponseTimeMs: elapsed,
			ErrorType:      models.ProbeErrorHTTP(resp.StatusCode),
		}, nil
	}
}

func (p *Prober) request(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	return p.client.Do(req)
}

// classifyNetworkError maps a transport error to a probe error type:
// timeouts to TIMEOUT, DNS failures to DNS_ERROR, the rest to
// NETWORK_ERROR.
func classifyNetworkError(err error) models.ProbeErrorType {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ProbeErrorTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.ProbeErrorDNS
	}
	return models.ProbeErrorNetwork
}

// IsRetryableNetworkError reports whether a probe error is worth another
// attempt. URL-level errors (transport, DNS, per-request timeouts) are;
// caller cancellation is not.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Ensure Prober implements the ReachabilityProber interface
var _ interfaces.ReachabilityProber = (*Prober)(nil)
