// Package cache provides the typed caching layer over the key/value
// store. Cache failures are never fatal to callers: a failed read behaves
// as a miss and a failed write is logged and swallowed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
)

// Service wraps the KV store with a JSON codec and miss-on-error semantics.
type Service struct {
	kv     interfaces.KeyValueStore
	logger arbor.ILogger
}

// NewService creates a new cache service.
func NewService(kv interfaces.KeyValueStore, logger arbor.ILogger) *Service {
	return &Service{
		kv:     kv,
		logger: logger,
	}
}

// GetJSON reads and decodes a cached value into v. Returns false on miss.
// An entry that fails to parse is treated as a miss and the bad key is
// purged so it cannot keep serving garbage.
func (s *Service) GetJSON(ctx context.Context, key string, v interface{}) bool {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cached value is not valid JSON, purging")
		if derr := s.kv.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("Failed to purge bad cache entry")
		}
		return false
	}
	return true
}

// PutJSON encodes and stores a value under the given TTL.
func (s *Service) PutJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return
	}
	if err := s.kv.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// GetString reads a scalar cached value. Returns "" on miss.
func (s *Service) GetString(ctx context.Context, key string) string {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		}
		return ""
	}
	return string(data)
}

// PutString stores a scalar value under the given TTL.
func (s *Service) PutString(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.kv.Set(ctx, key, []byte(value), ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Delete removes a cached entry.
func (s *Service) Delete(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
}
