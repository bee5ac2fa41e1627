package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/vectorindex"
)

// VectorStore is an embedded vectorindex.Client that keeps chunk points in
// BadgerDB. It serves development setups and tests without a Qdrant server.
// Points are keyed by collection, document and point ID, so pruning a
// document's stale chunks is a prefix scan.
type VectorStore struct {
	backend *Backend
	closed  atomic.Bool
}

var _ vectorindex.Client = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore on backend.
// Closing the store does not close the backend.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Dialer returns a vectorindex.Dialer that opens a fresh VectorStore on backend.
func Dialer(backend *Backend) vectorindex.Dialer {
	return func(ctx context.Context) (vectorindex.Client, error) {
		return NewVectorStore(backend), nil
	}
}

// Ping reports whether the store is usable.
func (s *VectorStore) Ping(ctx context.Context) error {
	if s.closed.Load() || s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// GetCollection returns collection metadata.
func (s *VectorStore) GetCollection(ctx context.Context, name string) (*vectorindex.CollectionInfo, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	var info *vectorindex.CollectionInfo
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = readValue(tx, makeCollectionKey(name), unmarshalCollection)
		if err != nil {
			return err
		}
		if info == nil {
			return vectorindex.ErrCollectionNotFound
		}
		return nil
	}, false)
	return info, err
}

// CreateCollection creates a collection.
func (s *VectorStore) CreateCollection(ctx context.Context, name string, vectorSize uint64, distance vectorindex.Distance) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(name)
		if _, err := tx.Get(key); err == nil {
			return vectorindex.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		info := &vectorindex.CollectionInfo{Name: name, VectorSize: vectorSize, Distance: distance}
		if err := tx.Set(key, marshalCollection(info)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	// Lost the race against a concurrent creator
	if errors.Is(err, badger.ErrConflict) {
		return vectorindex.ErrAlreadyExists
	}
	return err
}

// CreatePayloadIndex records a keyword index on field.
func (s *VectorStore) CreatePayloadIndex(ctx context.Context, collection, field string) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(collection)
		info, err := readValue(tx, key, unmarshalCollection)
		if err != nil {
			return err
		}
		if info == nil {
			return vectorindex.ErrCollectionNotFound
		}
		if info.HasIndex(field) {
			return vectorindex.ErrAlreadyExists
		}
		info.IndexedFields = append(info.IndexedFields, field)
		if err := tx.Set(key, marshalCollection(info)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if errors.Is(err, badger.ErrConflict) {
		return vectorindex.ErrAlreadyExists
	}
	return err
}

// Upsert writes points, overwriting any with the same ID.
func (s *VectorStore) Upsert(ctx context.Context, collection string, points []core.VectorPoint) error {
	info, err := s.GetCollection(ctx, collection)
	if err != nil {
		return err
	}
	for i := range points {
		if uint64(len(points[i].Vector)) != info.VectorSize {
			return fmt.Errorf("point %d: vector size %d, collection expects %d",
				points[i].Id, len(points[i].Vector), info.VectorSize)
		}
	}
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		for i := range points {
			point := &points[i]
			key := makePointKey(collection, point.Metadata.DocumentId, point.Id)
			if err := tx.Set(key, storage.MarshalPoint(point)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocumentPoints removes a document's points from fromChunk onwards.
func (s *VectorStore) DeleteDocumentPoints(ctx context.Context, collection string, documentID core.ID, fromChunk int) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	var stale [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialPointKey(collection, documentID)
		return scanPrefix(tx, prefix, storage.UnmarshalPoint, func(point *core.VectorPoint) error {
			if point.Metadata.ChunkIndex >= fromChunk {
				stale = append(stale, makePointKey(collection, documentID, point.Id))
			}
			return nil
		})
	}, false)
	if err != nil || len(stale) == 0 {
		return err
	}
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DocumentPoints returns a document's points ordered by chunk index.
func (s *VectorStore) DocumentPoints(ctx context.Context, collection string, documentID core.ID) ([]*core.VectorPoint, error) {
	var points []*core.VectorPoint
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialPointKey(collection, documentID)
		return scanPrefix(tx, prefix, storage.UnmarshalPoint, func(point *core.VectorPoint) error {
			points = append(points, point)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(points, func(a, b *core.VectorPoint) int {
		return a.Metadata.ChunkIndex - b.Metadata.ChunkIndex
	})
	return points, nil
}

// Close marks the store closed. The backend stays open.
func (s *VectorStore) Close() error {
	s.closed.Store(true)
	return nil
}

func marshalCollection(info *vectorindex.CollectionInfo) []byte {
	return storage.MarshalCollection(info.Name, info.VectorSize, string(info.Distance), info.IndexedFields)
}

func unmarshalCollection(data []byte) (*vectorindex.CollectionInfo, error) {
	name, size, distance, fields, err := storage.UnmarshalCollection(data)
	if err != nil {
		return nil, err
	}
	return &vectorindex.CollectionInfo{
		Name:          name,
		VectorSize:    size,
		Distance:      vectorindex.Distance(distance),
		IndexedFields: fields,
	}, nil
}
