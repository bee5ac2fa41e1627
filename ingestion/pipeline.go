package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/blob"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/extract"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/vectorindex"
)

// MaxErrorLength bounds the failure cause stored on a document, in runes.
const MaxErrorLength = 1000

// TextExtractor reads the text of an uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, r io.Reader, filename, contentType string) (*extract.Result, error)
}

// Splitter cuts extracted text into tagged chunks.
type Splitter interface {
	Split(text string, meta core.ChunkMetadata) ([]core.Chunk, error)
}

// errSkip aborts an UpdateDocument callback without writing.
var errSkip = errors.New("skip update")

// Result reports one ingestion attempt.
type Result struct {
	DocumentID core.ID       `json:"document_id"`
	ChunkCount int           `json:"chunk_count"`
	Skipped    bool          `json:"skipped,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// Pipeline runs ingestion attempts for stored documents.
type Pipeline struct {
	documents     storage.DocumentRepository
	blobs         blob.Store
	extractor     TextExtractor
	splitter      Splitter
	embedder      ai.Embedder
	bootstrap     *vectorindex.Bootstrap
	spec          vectorindex.CollectionSpec
	blobTimeout   time.Duration
	embedTimeout  time.Duration
	vectorTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBlobTimeout bounds opening and reading a document's blob.
// Default is 60s.
func WithBlobTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("blob timeout must be positive, got %s", d)
		}
		p.blobTimeout = d
		return nil
	}
}

// WithEmbedTimeout bounds each call to the embedding model.
// Default is 60s.
func WithEmbedTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("embed timeout must be positive, got %s", d)
		}
		p.embedTimeout = d
		return nil
	}
}

// WithVectorTimeout bounds each call to the vector index.
// Default is 60s.
func WithVectorTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("vector timeout must be positive, got %s", d)
		}
		p.vectorTimeout = d
		return nil
	}
}

// WithClock sets the time source used for stage markers.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing into the collection
// described by spec.
func NewPipeline(
	documents storage.DocumentRepository,
	blobs blob.Store,
	extractor TextExtractor,
	splitter Splitter,
	embedder ai.Embedder,
	bootstrap *vectorindex.Bootstrap,
	spec vectorindex.CollectionSpec,
	opts ...Option,
) (*Pipeline, error) {
	switch {
	case documents == nil:
		return nil, ErrDocumentRepositoryRequired
	case blobs == nil:
		return nil, ErrBlobStoreRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case splitter == nil:
		return nil, ErrSplitterRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case bootstrap == nil:
		return nil, ErrBootstrapRequired
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents:     documents,
		blobs:         blobs,
		extractor:     extractor,
		splitter:      splitter,
		embedder:      embedder,
		bootstrap:     bootstrap,
		spec:          spec,
		blobTimeout:   60 * time.Second,
		embedTimeout:  60 * time.Second,
		vectorTimeout: 60 * time.Second,
		now:           time.Now,
		logger:        slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Run performs one ingestion attempt for the document.
//
// Stage failures are returned as retryable errors with the document left in
// processing. A document that no longer exists yields a Dropped error. A
// document already completed or failed is left alone and reported as skipped.
func (p *Pipeline) Run(ctx context.Context, documentID core.ID) (*Result, error) {
	logger := p.logger.With("document_id", documentID)
	start := p.now()

	doc, err := p.begin(ctx, documentID)
	if errors.Is(err, errSkip) {
		logger.Info("document already finished, skipping")
		return &Result{DocumentID: documentID, ChunkCount: doc.ChunkCount, Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}

	at := &attempt{doc: doc}
	for _, proc := range p.stages() {
		if err := proc.run(ctx, at); err != nil {
			logger.Warn("ingestion stage failed", "stage", proc.marker, "err", err)
			return nil, err
		}
		if err := p.markStage(ctx, documentID, proc.marker); err != nil {
			return nil, err
		}
		logger.Debug("ingestion stage completed", "stage", proc.marker)
	}

	if err := p.finalize(ctx, documentID, len(at.chunks)); err != nil {
		return nil, err
	}

	elapsed := p.now().Sub(start)
	logger.Info("document ingested", "chunks", len(at.chunks), "elapsed", elapsed)
	return &Result{DocumentID: documentID, ChunkCount: len(at.chunks), Elapsed: elapsed}, nil
}

// MarkFailed records that ingestion of the document gave up with cause.
// A document that is gone or already terminal is left untouched.
func (p *Pipeline) MarkFailed(ctx context.Context, documentID core.ID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
		var re *retry.Error
		if errors.As(cause, &re) && re.Err != nil {
			msg = re.Err.Error()
		}
	}
	msg = core.TruncateMessage(msg, MaxErrorLength)

	_, err := p.documents.UpdateDocument(ctx, documentID, func(doc *core.Document) error {
		if !core.CanTransition(doc.Status, core.StatusFailed, false) {
			return errSkip
		}
		doc.Status = core.StatusFailed
		doc.ErrorMessage = msg
		return nil
	})
	switch {
	case err == nil:
		p.logger.Error("document ingestion failed", "document_id", documentID, "cause", msg)
		return nil
	case errors.Is(err, errSkip), errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("mark document %d failed: %w", documentID, err)
	}
}

func (p *Pipeline) stages() []processor {
	return []processor{
		{marker: core.StageExtracted, run: p.extractText},
		{marker: core.StageChunked, run: p.chunkText},
		{marker: core.StageEmbedded, run: p.embedChunks},
		{marker: core.StageIndexed, run: p.indexPoints},
	}
}

// begin moves the document into processing and clears the previous attempt.
func (p *Pipeline) begin(ctx context.Context, documentID core.ID) (*core.Document, error) {
	var finished *core.Document
	doc, err := p.documents.UpdateDocument(ctx, documentID, func(doc *core.Document) error {
		if doc.Status.Terminal() {
			finished = doc
			return errSkip
		}
		if !core.CanTransition(doc.Status, core.StatusProcessing, false) {
			return fmt.Errorf("document %d: cannot start from %s", documentID, doc.Status)
		}
		doc.Status = core.StatusProcessing
		doc.ErrorMessage = ""
		doc.Stage = core.StageNone
		doc.StageUpdatedAt = p.now().UTC()
		return nil
	})
	if errors.Is(err, errSkip) {
		return finished, errSkip
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, retry.Drop(fmt.Errorf("document %d: %w", documentID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("start document %d: %w", documentID, err)
	}
	return doc, nil
}

func (p *Pipeline) markStage(ctx context.Context, documentID core.ID, stage core.Stage) error {
	return p.update(ctx, documentID, func(doc *core.Document) error {
		doc.Stage = stage
		doc.StageUpdatedAt = p.now().UTC()
		return nil
	})
}

func (p *Pipeline) finalize(ctx context.Context, documentID core.ID, chunkCount int) error {
	return p.update(ctx, documentID, func(doc *core.Document) error {
		if !core.CanTransition(doc.Status, core.StatusCompleted, false) {
			return fmt.Errorf("document %d: cannot complete from %s", documentID, doc.Status)
		}
		doc.Status = core.StatusCompleted
		doc.ErrorMessage = ""
		doc.Stage = core.StageCompleted
		doc.StageUpdatedAt = p.now().UTC()
		doc.ChunkCount = chunkCount
		return nil
	})
}

// update writes to the document, dropping the job if it was deleted.
func (p *Pipeline) update(ctx context.Context, documentID core.ID, fn func(doc *core.Document) error) error {
	_, err := p.documents.UpdateDocument(ctx, documentID, fn)
	if errors.Is(err, storage.ErrNotFound) {
		return retry.Drop(fmt.Errorf("document %d deleted during ingestion: %w", documentID, err))
	}
	return err
}
