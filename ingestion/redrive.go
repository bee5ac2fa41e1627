package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

// DefaultStaleAfter is how long a document may sit without stage progress
// before a re-drive picks it up.
const DefaultStaleAfter = 30 * time.Minute

// Enqueuer submits ingestion jobs.
// It returns an error wrapping storage.ErrDuplicateKey when the document
// already has an active job.
type Enqueuer interface {
	EnqueueIngestion(ctx context.Context, documentID core.ID) (string, error)
}

// RedriveReport summarizes a re-drive pass.
type RedriveReport struct {
	Scanned  int
	Requeued int
	// Skipped counts documents that already had an active job or changed
	// state while the pass ran.
	Skipped int
	Jobs    []string
}

// Redriver resubmits documents whose ingestion failed or stalled.
type Redriver struct {
	documents storage.DocumentRepository
	enqueuer  Enqueuer
	progress  io.Writer
	now       func() time.Time
	logger    *slog.Logger
}

// RedriveOption configures a Redriver.
type RedriveOption func(*Redriver) error

// WithProgress reports progress to w.
func WithProgress(w io.Writer) RedriveOption {
	return func(r *Redriver) error {
		r.progress = w
		return nil
	}
}

// WithRedriveClock sets the time source used to judge staleness.
func WithRedriveClock(now func() time.Time) RedriveOption {
	return func(r *Redriver) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithRedriveLogger sets a custom logger.
func WithRedriveLogger(logger *slog.Logger) RedriveOption {
	return func(r *Redriver) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "redrive")
		return nil
	}
}

// NewRedriver creates a Redriver.
func NewRedriver(documents storage.DocumentRepository, enqueuer Enqueuer, opts ...RedriveOption) (*Redriver, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerRequired
	}
	r := &Redriver{
		documents: documents,
		enqueuer:  enqueuer,
		now:       time.Now,
		logger:    slog.Default().With("component", "redrive"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Redrive resets failed documents, and pending or processing documents idle
// for longer than staleAfter, back to pending and enqueues them again.
func (r *Redriver) Redrive(ctx context.Context, staleAfter time.Duration) (*RedriveReport, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	docs, err := r.documents.ListDocumentsByStatus(ctx, core.StatusPending, core.StatusProcessing, core.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	cutoff := r.now().Add(-staleAfter)
	var candidates []*core.Document
	for _, doc := range docs {
		if redrivable(doc, cutoff) {
			candidates = append(candidates, doc)
		}
	}

	report := &RedriveReport{Scanned: len(docs)}
	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = NewProgressTracker(r.progress, "documents", len(candidates), 10)
		tracker.Start()
		defer tracker.Finish()
	}

	for _, doc := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		jobID, err := r.redrive(ctx, doc.Id, cutoff)
		switch {
		case err == nil:
			report.Requeued++
			report.Jobs = append(report.Jobs, jobID)
		case errors.Is(err, errSkip), errors.Is(err, storage.ErrDuplicateKey), errors.Is(err, storage.ErrNotFound):
			report.Skipped++
		default:
			return report, err
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	r.logger.Info("re-drive finished", "scanned", report.Scanned, "requeued", report.Requeued, "skipped", report.Skipped)
	return report, nil
}

func (r *Redriver) redrive(ctx context.Context, documentID core.ID, cutoff time.Time) (string, error) {
	_, err := r.documents.UpdateDocument(ctx, documentID, func(doc *core.Document) error {
		// Re-check inside the transaction; the document may have moved on
		if !redrivable(doc, cutoff) || !core.CanTransition(doc.Status, core.StatusPending, true) {
			return errSkip
		}
		doc.Status = core.StatusPending
		doc.ErrorMessage = ""
		doc.Stage = core.StageNone
		return nil
	})
	if err != nil {
		return "", err
	}

	jobID, err := r.enqueuer.EnqueueIngestion(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Debug("document already queued", "document_id", documentID)
		}
		return "", err
	}
	r.logger.Info("document re-driven", "document_id", documentID, "job_id", jobID)
	return jobID, nil
}

func redrivable(doc *core.Document, cutoff time.Time) bool {
	switch doc.Status {
	case core.StatusFailed:
		return true
	case core.StatusProcessing:
		return doc.StageUpdatedAt.Before(cutoff)
	case core.StatusPending:
		return doc.UpdatedAt.Before(cutoff)
	default:
		return false
	}
}
