package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/storage"
)

// CacheStore is a key/value store with per-entry expiry backed by
// BadgerDB TTL entries. Expired entries read as missing.
type CacheStore struct {
	backend *Backend
}

// NewCacheStore creates a CacheStore on backend.
func NewCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend}
}

// Get returns the value for key.
// Returns storage.ErrNotFound if the key is missing or expired.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	return value, err
}

// Set stores value under key, replacing any previous value and its expiry.
// A zero ttl stores the entry without expiry.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return tx.SetEntry(entry)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeCacheKey(key))
	})
}
