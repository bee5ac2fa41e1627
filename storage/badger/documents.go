package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	for _, doc := range docs {
		if doc.Status == 0 {
			doc.Status = core.StatusPending
		}
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			doc.Id = core.ID(id)
			doc.CreatedAt = time.Now().UTC()
			doc.UpdatedAt = doc.CreatedAt

			if err := r.writeDocument(tx, doc); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateDocument applies fn to the stored document and persists it.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, id core.ID, fn func(doc *core.Document) error) (*core.Document, error) {
	var updated *core.Document
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		old, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc := *old
		if err := fn(&doc); err != nil {
			return err
		}
		doc.Id = old.Id
		doc.UpdatedAt = time.Now().UTC()

		// Update status index if status changed
		if old.Status != doc.Status {
			if err := tx.Delete(makeDocumentStatusKey(old.Status, old.Id)); err != nil {
				return err
			}
		}
		if err := r.writeDocument(tx, &doc); err != nil {
			return err
		}
		updated = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDocuments removes documents by their IDs.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeDocumentKey(id)
			doc, err := readValue(tx, key, storage.UnmarshalDocument)
			if err != nil {
				return err
			}
			if doc == nil {
				return storage.ErrNotFound
			}
			if err := tx.Delete(makeDocumentStatusKey(doc.Status, doc.Id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListDocumentsByStatus returns documents in any of the given statuses.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, statuses ...core.ProcessingStatus) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, status := range statuses {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = makePartialDocumentStatusKey(status)
			iter := tx.NewIterator(opts)

			var ids []core.ID
			for iter.Rewind(); iter.Valid(); iter.Next() {
				var id core.ID
				err := iter.Item().Value(func(val []byte) error {
					var err error
					id, err = storage.UnmarshalID(val)
					return err
				})
				if err != nil {
					iter.Close()
					return err
				}
				ids = append(ids, id)
			}
			iter.Close()

			for _, id := range ids {
				doc, err := readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
				if err != nil {
					return err
				}
				if doc != nil {
					results = append(results, doc)
				}
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	sortByID(results, func(d *core.Document) core.ID { return d.Id })
	return results, nil
}

func (r *DocumentRepository) writeDocument(tx *badger.Txn, doc *core.Document) error {
	if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
		return err
	}
	return tx.Set(makeDocumentStatusKey(doc.Status, doc.Id), storage.MarshalID(doc.Id))
}
