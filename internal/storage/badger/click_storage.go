package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// ClickStorage implements the ClickStorage interface for Badger
type ClickStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewClickStorage creates a new ClickStorage instance
func NewClickStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ClickStorage {
	return &ClickStorage{
		db:     db,
		logger: logger,
	}
}

// Append stores an enriched click record under an auto-assigned key.
func (s *ClickStorage) Append(ctx context.Context, click *models.ClickInfo) error {
	if err := s.db.Store().Insert(badgerhold.NextSequence(), click); err != nil {
		return fmt.Errorf("failed to append click for %s: %w", click.ShortURLID, err)
	}
	return nil
}

// ListByShortURL returns up to limit recent click records for a short url.
func (s *ClickStorage) ListByShortURL(ctx context.Context, shortURLID string, limit int) ([]*models.ClickInfo, error) {
	if limit <= 0 {
		limit = 100
	}

	var clicks []*models.ClickInfo
	query := badgerhold.Where("ShortURLID").Eq(shortURLID).
		SortBy("Timestamp").Reverse().Limit(limit)
	if err := s.db.Store().Find(&clicks, query); err != nil {
		return nil, fmt.Errorf("failed to list clicks for %s: %w", shortURLID, err)
	}
	return clicks, nil
}

// Ensure ClickStorage implements the interface
var _ interfaces.ClickStorage = (*ClickStorage)(nil)
