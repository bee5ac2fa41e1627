package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrSplitterRequired is returned when a chunk splitter is not provided.
	ErrSplitterRequired = errors.New("splitter required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrBootstrapRequired is returned when a vector collection bootstrap is not provided.
	ErrBootstrapRequired = errors.New("vector bootstrap required")

	// ErrEnqueuerRequired is returned when a redriver has nowhere to submit jobs.
	ErrEnqueuerRequired = errors.New("enqueuer required")

	// ErrNoChunks indicates extracted text produced no chunks.
	ErrNoChunks = errors.New("document produced no chunks")

	// ErrEmbeddingMismatch indicates the embedder returned a different number
	// of vectors than chunks it was given.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
