package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (*SessionRepository, error) {
	idSeq, err := backend.GetSequence(sessionIDSeq)
	if err != nil {
		return nil, err
	}
	return &SessionRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *SessionRepository) Close() error {
	return r.idSeq.Release()
}

// AppendSession stores a new session.
func (r *SessionRepository) AppendSession(ctx context.Context, session *core.StudySession) (*core.StudySession, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		session.Id = core.ID(id)
		if session.CreatedAt.IsZero() {
			session.CreatedAt = time.Now().UTC()
		}

		if err := tx.Set(makeSessionKey(session.Id), storage.MarshalStudySession(session)); err != nil {
			return err
		}

		// Update per-topic index
		indexKey := makeSessionTopicKey(session.OwnerId, session.TopicId, session.CreatedAt, session.Id)
		if err := tx.Set(indexKey, storage.MarshalID(session.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a single session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id core.ID) (*core.StudySession, error) {
	var result *core.StudySession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeSessionKey(id), storage.UnmarshalStudySession)
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

// GetRecentSessions returns the newest sessions for an (owner, topic) pair.
func (r *SessionRepository) GetRecentSessions(ctx context.Context, ownerID, topicID core.ID, limit int) ([]*core.StudySession, error) {
	var results []*core.StudySession
	if limit <= 0 {
		return results, nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSessionTopicKey(ownerID, topicID)

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key under the prefix
		seekKey := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 16)...)

		for iter.Seek(seekKey); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			var sessionID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				sessionID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			session, err := readValue(tx, makeSessionKey(sessionID), storage.UnmarshalStudySession)
			if err != nil {
				return err
			}
			if session != nil {
				results = append(results, session)
			}
		}
		return nil
	}, false)

	return results, err
}
