package geo

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/cache"
	"github.com/ternarybob/curtail/internal/services/stats"
)

// Processor drains click events off a bounded channel with a small worker
// pool, resolves each IP through the cache-first provider chain, persists
// the enriched click record and bumps the aggregate counters.
type Processor struct {
	providers []interfaces.GeoProvider
	cache     *cache.Service
	clicks    interfaces.ClickStorage
	stats     *stats.Service
	logger    arbor.ILogger

	queue       chan models.ClickEvent
	poolSize    int
	positiveTTL time.Duration
	unknownTTL  time.Duration

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor wires the geo pipeline from config. Providers are tried
// in order; pass the primary first.
func NewProcessor(
	config common.GeoConfig,
	providers []interfaces.GeoProvider,
	cacheService *cache.Service,
	clicks interfaces.ClickStorage,
	statsService *stats.Service,
	logger arbor.ILogger,
) *Processor {
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	ttlDays := config.CacheTTLDays
	if ttlDays <= 0 {
		ttlDays = 7
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		providers:   providers,
		cache:       cacheService,
		clicks:      clicks,
		stats:       statsService,
		logger:      logger,
		queue:       make(chan models.ClickEvent, queueSize),
		poolSize:    poolSize,
		positiveTTL: time.Duration(ttlDays) * 24 * time.Hour,
		unknownTTL:  common.ParseDuration(config.UnknownTTL, time.Hour),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Emit hands a click event to the pool without blocking. When the buffer
// is full, or the pool already shut down, the event is dropped; the click
// record is lost but the redirect path stays fast and never panics.
// Click handlers run in detached goroutines, so Emit can race Stop.
func (p *Processor) Emit(event models.ClickEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn().
			Str("short_url_id", event.ShortURLID).
			Msg("Geo processor stopped, dropping click event")
		return
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Warn().
			Str("short_url_id", event.ShortURLID).
			Msg("Geo queue full, dropping click event")
	}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.poolSize; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info().Int("pool_size", p.poolSize).Msg("Geo processor started")
}

// Stop shuts the pool down after draining buffered events. Safe to call
// once; later Emit calls drop their event instead of panicking.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.queue)
	p.wg.Wait()
	p.cancel()
	p.logger.Info().Msg("Geo processor stopped")
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for event := range p.queue {
		p.process(event)
	}
}

func (p *Processor) process(event models.ClickEvent) {
	details := p.resolve(p.ctx, event.IP)

	click := &models.ClickInfo{
		ShortURLID: event.ShortURLID,
		IP:         event.IP,
		Referrer:   event.Referrer,
		Browser:    event.Browser,
		Platform:   event.Platform,
		Country:    details.Country(),
		Timestamp:  event.Timestamp,
	}
	if err := p.clicks.Append(p.ctx, click); err != nil {
		p.logger.Error().Err(err).
			Str("short_url_id", event.ShortURLID).
			Msg("Failed to persist click record")
	}

	p.stats.IncrementClick(p.ctx, event.ShortURLID, details)
}

// resolve runs the lookup chain: private-range shortcut, details cache,
// legacy country cache, then each provider in order. Outcomes are cached
// either way - positive results for days, unknowns for a shorter window so
// transient provider outages heal.
func (p *Processor) resolve(ctx context.Context, ip string) models.GeoDetails {
	if isPrivateOrLocal(ip) {
		return models.UnknownGeoDetails()
	}

	var cached models.GeoDetails
	if p.cache.GetJSON(ctx, cache.KeyGeoDetails(ip), &cached) {
		return cached
	}

	// Legacy country-only entries from older writers still satisfy the
	// lookup; only the country they carry is known.
	if country := p.cache.GetString(ctx, cache.KeyGeoCountry(ip)); country != "" && country != models.UnknownCountry {
		return models.GeoDetails{CountryCode: country}
	}

	for _, provider := range p.providers {
		details, err := provider.Resolve(ctx, ip)
		if err != nil {
			p.logger.Warn().Err(err).
				Str("provider", provider.Name()).
				Str("ip", ip).
				Msg("Geo lookup failed")
			continue
		}

		p.cache.PutJSON(ctx, cache.KeyGeoDetails(ip), details, p.positiveTTL)
		p.cache.PutString(ctx, cache.KeyGeoCountry(ip), details.Country(), p.positiveTTL)
		return *details
	}

	// Negative cache so a dead provider is not re-queried per click.
	unknown := models.UnknownGeoDetails()
	p.cache.PutJSON(ctx, cache.KeyGeoDetails(ip), unknown, p.unknownTTL)
	p.cache.PutString(ctx, cache.KeyGeoCountry(ip), models.UnknownCountry, p.unknownTTL)
	return unknown
}

// Ensure Processor implements the GeoProcessor interface
var _ interfaces.GeoProcessor = (*Processor)(nil)
