package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

// TopicRepository implements storage.TopicRepository for BadgerDB.
type TopicRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.TopicRepository = (*TopicRepository)(nil)

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(backend *Backend) (*TopicRepository, error) {
	idSeq, err := backend.GetSequence(topicIDSeq)
	if err != nil {
		return nil, err
	}
	return &TopicRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *TopicRepository) Close() error {
	return r.idSeq.Release()
}

// AddTopics adds one or more topics to storage.
func (r *TopicRepository) AddTopics(ctx context.Context, topics ...*core.Topic) ([]*core.Topic, error) {
	for _, topic := range topics {
		if err := core.ValidateTopic(topic); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, topic := range topics {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			topic.Id = core.ID(id)
			if topic.CreatedAt.IsZero() {
				topic.CreatedAt = time.Now().UTC()
			}
			if err := tx.Set(makeTopicKey(topic.Id), storage.MarshalTopic(topic)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// GetTopic retrieves a single topic by ID.
func (r *TopicRepository) GetTopic(ctx context.Context, id core.ID) (*core.Topic, error) {
	var result *core.Topic
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeTopicKey(id), storage.UnmarshalTopic)
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

// GetOwnedTopic retrieves a topic only if it belongs to ownerID.
func (r *TopicRepository) GetOwnedTopic(ctx context.Context, ownerID, topicID core.ID) (*core.Topic, error) {
	topic, err := r.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic.OwnerId != ownerID {
		return nil, storage.ErrNotFound
	}
	return topic, nil
}

// DeleteTopics removes topics by their IDs.
func (r *TopicRepository) DeleteTopics(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeTopicKey(id)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func sortByID[T any](records []T, id func(T) core.ID) {
	slices.SortFunc(records, func(a, b T) int {
		ia, ib := id(a), id(b)
		if ia < ib {
			return -1
		}
		if ia > ib {
			return 1
		}
		return 0
	})
}
