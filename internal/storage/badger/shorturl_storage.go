package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// ShortURLStorage implements the ShortURLStorage interface for Badger
type ShortURLStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewShortURLStorage creates a new ShortURLStorage instance
func NewShortURLStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ShortURLStorage {
	return &ShortURLStorage{
		db:     db,
		logger: logger,
	}
}

// Save commits a short link. Re-saving the same hash is an idempotent
// overwrite; the hash is derived from the url so the content is identical.
func (s *ShortURLStorage) Save(ctx context.Context, shortURL *models.ShortURL) error {
	if err := s.db.Store().Upsert(shortURL.Hash, shortURL); err != nil {
		return fmt.Errorf("failed to save short url %s: %w", shortURL.Hash, err)
	}
	return nil
}

// GetByHash returns the committed link for a hash
func (s *ShortURLStorage) GetByHash(ctx context.Context, hash string) (*models.ShortURL, error) {
	var shortURL models.ShortURL
	err := s.db.Store().Get(hash, &shortURL)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get short url %s: %w", hash, err)
	}
	return &shortURL, nil
}

// Ensure ShortURLStorage implements the interface
var _ interfaces.ShortURLStorage = (*ShortURLStorage)(nil)
