// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package studyplanner wires the study planner's background jobs: tutoring
// answers and document ingestion, run by a persistent job queue.
package studyplanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/ai/providers"
	"github.com/poiesic/studyplanner/blob"
	"github.com/poiesic/studyplanner/chunking"
	"github.com/poiesic/studyplanner/config"
	"github.com/poiesic/studyplanner/contextcache"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/extract"
	"github.com/poiesic/studyplanner/ingestion"
	"github.com/poiesic/studyplanner/queue"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/storage/badger"
	"github.com/poiesic/studyplanner/tutor"
	"github.com/poiesic/studyplanner/vectorindex"
	"github.com/poiesic/studyplanner/vectorindex/qdrant"
)

// Runtime owns every long-lived resource of a worker process.
type Runtime struct {
	cfg        *config.Config
	stores     *badger.Stores
	provider   ai.AIProvider
	blobs      blob.Store
	holder     *vectorindex.Holder
	bootstrap  *vectorindex.Bootstrap
	cache      *contextcache.Cache
	pipeline   *ingestion.Pipeline
	dispatcher *queue.Dispatcher
	logger     *slog.Logger
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	provider ai.AIProvider
	blobs    blob.Store
	dialer   vectorindex.Dialer
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the AI settings.
// The Runtime takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *runtimeOptions) {
		o.provider = provider
	}
}

// WithBlobStore uses store instead of building one from the blob settings.
// The Runtime takes ownership and closes it.
func WithBlobStore(store blob.Store) Option {
	return func(o *runtimeOptions) {
		o.blobs = store
	}
}

// WithVectorDialer connects to the vector index with dial instead of the
// configured backend.
func WithVectorDialer(dial vectorindex.Dialer) Option {
	return func(o *runtimeOptions) {
		o.dialer = dial
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// Open validates cfg and builds the runtime. Jobs are accepted right away
// but run only after Start.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &runtimeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	r := &Runtime{cfg: cfg, logger: options.logger}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	if r.stores, err = badger.OpenStores(cfg.DataDir, cfg.InMemory); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	r.provider = options.provider
	if r.provider == nil {
		registry, err := providers.New(cfg.AI, providers.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.provider = registry
	}

	r.blobs = options.blobs
	if r.blobs == nil {
		if r.blobs, err = openBlobStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	dial := options.dialer
	if dial == nil {
		dial = r.vectorDialer()
	}
	if r.holder, err = vectorindex.NewHolder(dial, vectorindex.WithHolderLogger(r.logger)); err != nil {
		return nil, err
	}
	if r.bootstrap, err = vectorindex.NewBootstrap(r.holder, vectorindex.WithBootstrapLogger(r.logger)); err != nil {
		return nil, err
	}

	r.cache, err = contextcache.New(r.stores.Cache,
		contextcache.WithHistoryLimit(cfg.HistoryLimit),
		contextcache.WithTTL(cfg.ContextTTL),
		contextcache.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}

	extractor, err := extract.New(extract.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	splitter, err := chunking.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	r.pipeline, err = ingestion.NewPipeline(r.stores.Documents, r.blobs, extractor, splitter,
		r.provider.Embedder(), r.bootstrap, cfg.CollectionSpec(),
		ingestion.WithBlobTimeout(cfg.BlobTimeout),
		ingestion.WithEmbedTimeout(cfg.AI.Timeout),
		ingestion.WithVectorTimeout(cfg.VectorTimeout),
		ingestion.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}

	job, err := tutor.NewJob(r.stores.Topics, r.stores.Sessions, r.cache, r.provider,
		tutor.WithTemperature(cfg.AI.Temperature),
		tutor.WithMaxTokens(cfg.AI.MaxTokens),
		tutor.WithTimeout(cfg.AI.Timeout),
		tutor.WithLanguage(cfg.TutorLanguage),
		tutor.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}

	r.dispatcher, err = queue.NewDispatcher(r.stores.Jobs,
		queue.WithWorkers(cfg.Workers),
		queue.WithHandler(tutor.NewHandler(job, cfg.AnswerPolicy())),
		queue.WithHandler(ingestion.NewHandler(r.pipeline, cfg.IngestionPolicy())),
		queue.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.BlobBackend == config.BlobGCS {
		store, err := blob.NewGCSStore(ctx, cfg.BlobBucket)
		if err != nil {
			return nil, fmt.Errorf("open gcs bucket: %w", err)
		}
		return store, nil
	}
	store, err := blob.NewFSStore(cfg.BlobRoot)
	if err != nil {
		return nil, fmt.Errorf("open blob root: %w", err)
	}
	return store, nil
}

func (r *Runtime) vectorDialer() vectorindex.Dialer {
	if r.cfg.VectorBackend == config.VectorLocal {
		return badger.Dialer(r.stores.Backend)
	}
	return qdrant.Dialer(qdrant.Config{URL: r.cfg.QdrantURL, APIKey: r.cfg.QdrantAPIKey})
}

// Bootstrap makes sure the chunk collection exists with the configured shape.
func (r *Runtime) Bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.VectorTimeout)
	defer cancel()
	_, err := r.bootstrap.EnsureCollection(ctx, r.cfg.CollectionSpec())
	return err
}

// Start recovers interrupted jobs and begins running queued ones.
func (r *Runtime) Start(ctx context.Context) error {
	return r.dispatcher.Start(ctx)
}

// EnqueueAnswer queues a tutoring question and returns the job handle.
func (r *Runtime) EnqueueAnswer(ctx context.Context, req tutor.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return r.dispatcher.Enqueue(ctx, core.JobKindAnswer, payload)
}

// EnqueueIngestion queues ingestion of a stored document and returns the job
// handle. It fails with queue.ErrDuplicateJob while another ingestion job
// for the document is pending or running.
func (r *Runtime) EnqueueIngestion(ctx context.Context, documentID core.ID) (string, error) {
	if documentID == 0 {
		return "", ErrDocumentIDRequired
	}
	payload, err := json.Marshal(ingestion.Payload{DocumentID: documentID})
	if err != nil {
		return "", err
	}
	return r.dispatcher.Enqueue(ctx, core.JobKindIngestion, payload)
}

// PollStatus returns the state of a job and, once finished, its result or error.
func (r *Runtime) PollStatus(ctx context.Context, handle string) (*queue.Status, error) {
	return r.dispatcher.PollStatus(ctx, handle)
}

// Redrive requeues failed documents and documents idle for longer than
// staleAfter. Progress is written to progress when it is not nil.
func (r *Runtime) Redrive(ctx context.Context, staleAfter time.Duration, progress io.Writer) (*ingestion.RedriveReport, error) {
	opts := []ingestion.RedriveOption{ingestion.WithRedriveLogger(r.logger)}
	if progress != nil {
		opts = append(opts, ingestion.WithProgress(progress))
	}
	redriver, err := ingestion.NewRedriver(r.stores.Documents, r, opts...)
	if err != nil {
		return nil, err
	}
	return redriver.Redrive(ctx, staleAfter)
}

// PurgeJobs deletes jobs that finished more than olderThan ago.
func (r *Runtime) PurgeJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return r.dispatcher.Purge(ctx, olderThan)
}

// ClearContext forgets the tutoring conversation of an (owner, topic) pair.
func (r *Runtime) ClearContext(ctx context.Context, ownerID, topicID core.ID) {
	r.cache.Clear(ctx, ownerID, topicID)
}

// Documents returns the document repository.
func (r *Runtime) Documents() storage.DocumentRepository {
	return r.stores.Documents
}

// Topics returns the topic repository.
func (r *Runtime) Topics() storage.TopicRepository {
	return r.stores.Topics
}

// Sessions returns the study session repository.
func (r *Runtime) Sessions() storage.SessionRepository {
	return r.stores.Sessions
}

// Blobs returns the blob store.
func (r *Runtime) Blobs() blob.Store {
	return r.blobs
}

// Close stops the dispatcher, letting running jobs return to pending, then
// releases connections and storage.
func (r *Runtime) Close() error {
	var errs []error
	if r.dispatcher != nil {
		errs = append(errs, r.dispatcher.Close())
	}
	if r.holder != nil {
		if err := r.holder.Close(); err != nil {
			r.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if r.provider != nil {
		if err := r.provider.Close(); err != nil {
			r.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if r.blobs != nil {
		if err := r.blobs.Close(); err != nil {
			r.logger.Error("error closing blob store", "err", err)
			errs = append(errs, err)
		}
	}
	if r.stores != nil {
		if err := r.stores.Close(); err != nil {
			r.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
