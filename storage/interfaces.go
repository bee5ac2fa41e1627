package storage

import (
	"context"
	"time"

	"github.com/poiesic/studyplanner/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// The shared backend is closed separately.
	Close() error
}

// DocumentRepository provides operations for managing uploaded documents.
type DocumentRepository interface {
	Repository
	// AddDocuments adds one or more documents to storage.
	// Generates new IDs from sequence and sets CreatedAt/UpdatedAt.
	// New documents start in StatusPending unless a status is set.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// UpdateDocument applies fn to the stored document inside a single write
	// transaction and persists the result immediately.
	// UpdatedAt is set automatically.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, id core.ID, fn func(doc *core.Document) error) (*core.Document, error)

	// DeleteDocuments removes documents by their IDs.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// ListDocumentsByStatus returns all documents in any of the given statuses,
	// ordered by ID.
	ListDocumentsByStatus(ctx context.Context, statuses ...core.ProcessingStatus) ([]*core.Document, error)
}

// TopicRepository provides operations for managing study topics.
type TopicRepository interface {
	Repository
	// AddTopics adds one or more topics to storage.
	// Generates new IDs from sequence and sets CreatedAt.
	AddTopics(ctx context.Context, topics ...*core.Topic) ([]*core.Topic, error)

	// GetTopic retrieves a single topic by ID.
	// Returns ErrNotFound if the topic doesn't exist.
	GetTopic(ctx context.Context, id core.ID) (*core.Topic, error)

	// GetOwnedTopic retrieves a topic only if it belongs to ownerID.
	// Returns ErrNotFound if the topic doesn't exist or has another owner.
	GetOwnedTopic(ctx context.Context, ownerID, topicID core.ID) (*core.Topic, error)

	// DeleteTopics removes topics by their IDs.
	// Returns ErrNotFound if any topic doesn't exist.
	DeleteTopics(ctx context.Context, ids ...core.ID) error
}

// SessionRepository provides the append-only study session log.
type SessionRepository interface {
	Repository
	// AppendSession stores a new session, assigning its ID.
	// CreatedAt is set if zero.
	AppendSession(ctx context.Context, session *core.StudySession) (*core.StudySession, error)

	// GetSession retrieves a single session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id core.ID) (*core.StudySession, error)

	// GetRecentSessions returns up to limit sessions for an (owner, topic)
	// pair, most recent first.
	GetRecentSessions(ctx context.Context, ownerID, topicID core.ID, limit int) ([]*core.StudySession, error)
}

// JobRepository persists queued jobs so they survive process restarts.
type JobRepository interface {
	Repository
	// CreateJob stores a new job.
	// Returns ErrDuplicateKey if job.DedupKey is held by a non-terminal job.
	CreateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by its handle.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// UpdateJob applies fn to the stored job inside a single write transaction.
	// The dedup key is released once the job reaches a terminal state.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, id string, fn func(job *core.Job) error) (*core.Job, error)

	// ListJobsByState returns all jobs in any of the given states,
	// ordered by enqueue time.
	ListJobsByState(ctx context.Context, states ...core.JobState) ([]*core.Job, error)

	// PurgeFinishedJobs deletes terminal jobs that finished before cutoff.
	// Returns the number of jobs removed.
	PurgeFinishedJobs(ctx context.Context, cutoff time.Time) (int, error)
}
