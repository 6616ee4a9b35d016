// Package stats maintains the aggregate click counters: totals, per-country
// and per-city breakdowns, both per short URL and system wide.
package stats

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/cache"
)

// Service increments and reads the counter namespace in the KV store.
// Counters only ever grow; there is no decrement path.
type Service struct {
	kv     interfaces.KeyValueStore
	logger arbor.ILogger
}

// NewService creates the stats service.
func NewService(kv interfaces.KeyValueStore, logger arbor.ILogger) *Service {
	return &Service{
		kv:     kv,
		logger: logger,
	}
}

// URLStats is the aggregate view for one short URL.
type URLStats struct {
	Total     int64            `json:"total"`
	Countries map[string]int64 `json:"countries"`
	Cities    map[string]int64 `json:"cities"`
}

// IncrementClick bumps the counters for one resolved click. The total
// always moves; the country counter moves when a country was resolved and
// the city counter when both city and country are known. The city field is
// keyed "city|CC" so same-named cities in different countries stay apart.
func (s *Service) IncrementClick(ctx context.Context, shortURLID string, details models.GeoDetails) {
	s.incr(ctx, cache.KeyURLTotal(shortURLID))
	s.incr(ctx, cache.KeySystemTotal)

	country := details.Country()
	if country == models.UnknownCountry {
		return
	}

	s.hincr(ctx, cache.KeyURLCountries(shortURLID), country)
	s.hincr(ctx, cache.KeySystemCountries, country)

	if details.City != "" {
		field := fmt.Sprintf("%s|%s", details.City, country)
		s.hincr(ctx, cache.KeyURLCities(shortURLID), field)
		s.hincr(ctx, cache.KeySystemCities, field)
	}
}

// URLStats returns the aggregates for one short URL. Missing counters
// read as zero.
func (s *Service) URLStats(ctx context.Context, shortURLID string) (*URLStats, error) {
	total, err := s.kv.GetInt(ctx, cache.KeyURLTotal(shortURLID))
	if err != nil {
		return nil, fmt.Errorf("failed to read click total: %w", err)
	}
	countries, err := s.kv.HGetAll(ctx, cache.KeyURLCountries(shortURLID))
	if err != nil {
		return nil, fmt.Errorf("failed to read country counters: %w", err)
	}
	cities, err := s.kv.HGetAll(ctx, cache.KeyURLCities(shortURLID))
	if err != nil {
		return nil, fmt.Errorf("failed to read city counters: %w", err)
	}

	return &URLStats{
		Total:     total,
		Countries: nonNil(countries),
		Cities:    nonNil(cities),
	}, nil
}

// SystemStats returns the system-wide aggregates.
func (s *Service) SystemStats(ctx context.Context) (*URLStats, error) {
	total, err := s.kv.GetInt(ctx, cache.KeySystemTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to read click total: %w", err)
	}
	countries, err := s.kv.HGetAll(ctx, cache.KeySystemCountries)
	if err != nil {
		return nil, fmt.Errorf("failed to read country counters: %w", err)
	}
	cities, err := s.kv.HGetAll(ctx, cache.KeySystemCities)
	if err != nil {
		return nil, fmt.Errorf("failed to read city counters: %w", err)
	}

	return &URLStats{
		Total:     total,
		Countries: nonNil(countries),
		Cities:    nonNil(cities),
	}, nil
}

func (s *Service) incr(ctx context.Context, key string) {
	if _, err := s.kv.IncrBy(ctx, key, 1); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Counter increment failed")
	}
}

func (s *Service) hincr(ctx context.Context, key, field string) {
	if _, err := s.kv.HIncrBy(ctx, key, field, 1); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Str("field", field).Msg("Counter increment failed")
	}
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
