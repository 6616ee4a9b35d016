package badger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
)

// KVStore implements the KeyValueStore interface on raw badger entries.
// TTLs ride on badger's native entry expiry; counters are decimal strings
// incremented inside transactions.
type KVStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStore creates a new KVStore instance
func NewKVStore(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStore {
	return &KVStore{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a value by key. Expired entries surface as ErrKeyNotFound.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces a value with the given TTL. Zero TTL stores
// without expiry.
func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// IncrBy atomically adds delta to the counter at key. Concurrent
// increments retry on transaction conflict so no increment is lost.
func (s *KVStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var result int64
	for {
		err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
			current := int64(0)
			item, err := txn.Get([]byte(key))
			if err == nil {
				if err := item.Value(func(val []byte) error {
					parsed, perr := strconv.ParseInt(string(val), 10, 64)
					if perr != nil {
						// Corrupt counter value, restart from zero
						return nil
					}
					current = parsed
					return nil
				}); err != nil {
					return err
				}
			} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}

			result = current + delta
			return txn.Set([]byte(key), []byte(strconv.FormatInt(result, 10)))
		})
		if errors.Is(err, badgerdb.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to increment %s: %w", key, err)
		}
		return result, nil
	}
}

// HIncrBy atomically adds delta to a field of the map at key. Fields are
// stored as sub-keys so increments on different fields never conflict.
func (s *KVStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.IncrBy(ctx, key+":"+field, delta)
}

// GetInt reads a counter, zero when absent.
func (s *KVStore) GetInt(ctx context.Context, key string) (int64, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s is not an integer: %w", key, err)
	}
	return parsed, nil
}

// HGetAll returns every field of the map at key by prefix scan.
func (s *KVStore) HGetAll(ctx context.Context, key string) (map[string]int64, error) {
	fields := make(map[string]int64)
	prefix := []byte(key + ":")

	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			field := strings.TrimPrefix(string(item.Key()), string(prefix))
			if err := item.Value(func(val []byte) error {
				parsed, perr := strconv.ParseInt(string(val), 10, 64)
				if perr == nil {
					fields[field] = parsed
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", key, err)
	}
	return fields, nil
}

// Ensure KVStore implements KeyValueStore interface
var _ interfaces.KeyValueStore = (*KVStore)(nil)
