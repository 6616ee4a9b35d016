package badger

import (
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
)

// Manager owns the badger connection and the typed storage surfaces.
type Manager struct {
	db        *BadgerDB
	jobs      interfaces.JobStore
	shortURLs interfaces.ShortURLStorage
	clicks    interfaces.ClickStorage
	kv        interfaces.KeyValueStore
	logger    arbor.ILogger
}

// NewManager opens the database and wires the storage implementations.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		jobs:      NewJobStorage(db, logger),
		shortURLs: NewShortURLStorage(db, logger),
		clicks:    NewClickStorage(db, logger),
		kv:        NewKVStore(db, logger),
		logger:    logger,
	}, nil
}

func (m *Manager) Jobs() interfaces.JobStore             { return m.jobs }
func (m *Manager) ShortURLs() interfaces.ShortURLStorage { return m.shortURLs }
func (m *Manager) Clicks() interfaces.ClickStorage       { return m.clicks }
func (m *Manager) KV() interfaces.KeyValueStore          { return m.kv }
func (m *Manager) DB() *badgerdb.DB                      { return m.db.DB() }

// Close closes the underlying database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}

// Ensure Manager implements StorageManager
var _ interfaces.StorageManager = (*Manager)(nil)
