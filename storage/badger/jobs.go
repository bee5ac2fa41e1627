package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
// Dedup keys are held in a secondary index for as long as the owning job is
// not terminal; concurrent creators conflict on that index key.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// Close is a no-op; the backend is closed separately.
func (r *JobRepository) Close() error {
	return nil
}

// CreateJob stores a new job, claiming its dedup key if it has one.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.Job) error {
	if job.Id == "" || job.Kind == "" {
		return core.ErrInvalidJob
	}
	if job.State == "" {
		job.State = core.JobPending
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeJobKey(job.Id)); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if job.DedupKey != "" {
			held, err := r.dedupHolder(tx, job.DedupKey)
			if err != nil {
				return err
			}
			if held != nil && !held.State.Terminal() {
				return storage.ErrDuplicateKey
			}
			if err := tx.Set(makeJobDedupKey(job.DedupKey), []byte(job.Id)); err != nil {
				return err
			}
		}

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	// A concurrent creator committed the same dedup key first
	if errors.Is(err, badger.ErrConflict) {
		return storage.ErrDuplicateKey
	}
	return err
}

// GetJob retrieves a job by its handle.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var result *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeJobKey(id), storage.UnmarshalJob)
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

// UpdateJob applies fn to the stored job and persists it.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, fn func(job *core.Job) error) (*core.Job, error) {
	var updated *core.Job
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		old, err := readValue(tx, makeJobKey(id), storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		job := *old
		if err := fn(&job); err != nil {
			return err
		}
		job.Id = old.Id
		job.DedupKey = old.DedupKey

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(&job)); err != nil {
			return err
		}
		if job.DedupKey != "" && job.State.Terminal() && !old.State.Terminal() {
			if err := r.releaseDedup(tx, job.DedupKey, job.Id); err != nil {
				return err
			}
		}
		updated = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListJobsByState returns jobs in any of the given states, oldest first.
func (r *JobRepository) ListJobsByState(ctx context.Context, states ...core.JobState) ([]*core.Job, error) {
	var results []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(jobPrefix), storage.UnmarshalJob, func(job *core.Job) error {
			if slices.Contains(states, job.State) {
				results = append(results, job)
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(results, func(a, b *core.Job) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return results, nil
}

// PurgeFinishedJobs deletes terminal jobs that finished before cutoff.
func (r *JobRepository) PurgeFinishedJobs(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(jobPrefix), storage.UnmarshalJob, func(job *core.Job) error {
			if job.State.Terminal() && job.FinishedAt.Before(cutoff) {
				stale = append(stale, job.Id)
			}
			return nil
		})
	}, false)
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	err = r.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, id := range stale {
			if err := tx.Delete(makeJobKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// dedupHolder returns the job currently registered under dedupKey, if any.
func (r *JobRepository) dedupHolder(tx *badger.Txn, dedupKey string) (*core.Job, error) {
	item, err := tx.Get(makeJobDedupKey(dedupKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	holderID, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return readValue(tx, makeJobKey(string(holderID)), storage.UnmarshalJob)
}

// releaseDedup removes the dedup entry if it still points at jobID.
func (r *JobRepository) releaseDedup(tx *badger.Txn, dedupKey, jobID string) error {
	key := makeJobDedupKey(dedupKey)
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	holderID, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if string(holderID) != jobID {
		return nil
	}
	return tx.Delete(key)
}
