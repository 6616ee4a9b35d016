package interfaces

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/ternarybob/curtail/internal/models"
)

// ShortURLStorage persists committed short links.
type ShortURLStorage interface {
	// Save commits a short link. Saving the same hash twice is an
	// idempotent overwrite with identical content.
	Save(ctx context.Context, shortURL *models.ShortURL) error

	// GetByHash returns the link, ErrNotFound when absent.
	GetByHash(ctx context.Context, hash string) (*models.ShortURL, error)
}

// ClickStorage appends compact per-click records.
type ClickStorage interface {
	Append(ctx context.Context, click *models.ClickInfo) error
	ListByShortURL(ctx context.Context, shortURLID string, limit int) ([]*models.ClickInfo, error)
}

// StorageManager owns the badger connection and hands out the typed
// storage surfaces built on it.
type StorageManager interface {
	Jobs() JobStore
	ShortURLs() ShortURLStorage
	Clicks() ClickStorage
	KV() KeyValueStore

	// DB exposes the raw badger handle for the queue managers and the
	// maintenance GC.
	DB() *badger.DB

	Close() error
}
