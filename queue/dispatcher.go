package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/storage"
)

// maxErrorLength bounds LastError, in runes.
const maxErrorLength = 1000

// Handler runs jobs of one kind.
type Handler interface {
	Kind() core.JobKind
	Policy() retry.Policy
	// Handle performs a single attempt. attempt is 1-based across restarts.
	Handle(ctx context.Context, payload []byte, attempt int) ([]byte, error)
	// DedupKey returns a key allowing one active job at a time, or "".
	DedupKey(payload []byte) string
}

// FailureHandler is implemented by handlers that record a final failure on
// the job's target entity. It is not called for dropped jobs.
type FailureHandler interface {
	Failed(ctx context.Context, payload []byte, cause error) error
}

// Status is the externally visible view of a job.
type Status struct {
	ID          string          `json:"id"`
	Kind        core.JobKind    `json:"kind"`
	State       core.JobState   `json:"state"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	FinishedAt  time.Time       `json:"finished_at,omitzero"`
}

// errSkip aborts an UpdateJob callback without writing.
var errSkip = errors.New("skip update")

// Dispatcher stores jobs and runs them on a worker pool.
type Dispatcher struct {
	jobs     storage.JobRepository
	handlers map[core.JobKind]Handler
	workers  int
	pool     *ants.Pool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  atomic.Bool
	closed   bool
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithWorkers sets the number of jobs run concurrently.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(d *Dispatcher) error {
		if n < 1 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		d.workers = n
		return nil
	}
}

// WithHandler registers h for its kind. A later handler replaces an earlier one.
func WithHandler(h Handler) Option {
	return func(d *Dispatcher) error {
		if h == nil {
			return errors.New("handler is nil")
		}
		if err := h.Policy().Validate(); err != nil {
			return fmt.Errorf("handler %s: %w", h.Kind(), err)
		}
		d.handlers[h.Kind()] = h
		return nil
	}
}

// WithClock sets the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) error {
		if now != nil {
			d.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "dispatcher")
		return nil
	}
}

// NewDispatcher creates a Dispatcher. Jobs are accepted immediately but run
// only after Start.
func NewDispatcher(jobs storage.JobRepository, opts ...Option) (*Dispatcher, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	d := &Dispatcher{
		jobs:     jobs,
		handlers: make(map[core.JobKind]Handler),
		workers:  max(runtime.NumCPU(), 1),
		now:      time.Now,
		logger:   slog.Default().With("component", "dispatcher"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(d.workers)
	if err != nil {
		return nil, err
	}
	d.pool = pool
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Enqueue stores a new job for kind and schedules it.
// It returns the job handle, or ErrDuplicateJob if the handler's dedup key
// for payload is held by an active job.
func (d *Dispatcher) Enqueue(ctx context.Context, kind core.JobKind, payload []byte) (string, error) {
	if d.isClosed() {
		return "", ErrClosed
	}
	h, ok := d.handlers[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownJobKind, kind)
	}

	job := &core.Job{
		Id:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		State:       core.JobPending,
		MaxAttempts: h.Policy().MaxAttempts,
		DedupKey:    h.DedupKey(payload),
		EnqueuedAt:  d.now().UTC(),
	}
	if err := d.jobs.CreateJob(ctx, job); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateJob, job.DedupKey)
		}
		return "", fmt.Errorf("create job: %w", err)
	}

	d.logger.Debug("job enqueued", "job_id", job.Id, "kind", kind)
	if d.started.Load() {
		d.dispatch(job.Id)
	}
	return job.Id, nil
}

// Start recovers jobs interrupted by a previous shutdown and runs every
// pending job. Calling Start more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.isClosed() {
		return ErrClosed
	}
	if !d.started.CompareAndSwap(false, true) {
		return nil
	}

	interrupted, err := d.jobs.ListJobsByState(ctx, core.JobRunning)
	if err != nil {
		return fmt.Errorf("list running jobs: %w", err)
	}
	for _, job := range interrupted {
		_, err := d.jobs.UpdateJob(ctx, job.Id, func(j *core.Job) error {
			if j.State != core.JobRunning {
				return errSkip
			}
			j.State = core.JobPending
			return nil
		})
		if err != nil && !errors.Is(err, errSkip) {
			return fmt.Errorf("recover job %s: %w", job.Id, err)
		}
	}
	if len(interrupted) > 0 {
		d.logger.Info("recovered interrupted jobs", "count", len(interrupted))
	}

	pending, err := d.jobs.ListJobsByState(ctx, core.JobPending)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		d.dispatch(job.Id)
	}
	d.logger.Info("dispatcher started", "workers", d.workers, "pending", len(pending))
	return nil
}

// PollStatus returns the current status of a job.
func (d *Dispatcher) PollStatus(ctx context.Context, id string) (*Status, error) {
	job, err := d.jobs.GetJob(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	status := &Status{
		ID:          job.Id,
		Kind:        job.Kind,
		State:       job.State,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		EnqueuedAt:  job.EnqueuedAt,
		FinishedAt:  job.FinishedAt,
	}
	switch job.State {
	case core.JobSucceeded:
		status.Result = json.RawMessage(job.Result)
	case core.JobFailed, core.JobDropped:
		status.Error = job.LastError
	}
	return status, nil
}

// Purge deletes jobs that finished more than olderThan ago.
func (d *Dispatcher) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	return d.jobs.PurgeFinishedJobs(ctx, d.now().Add(-olderThan))
}

// Close stops accepting jobs, cancels running ones and waits for them to
// return. Canceled jobs are left pending for the next Start.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.pool.Release()
	return nil
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// dispatch schedules a job. After Close it does nothing and the job stays
// pending.
func (d *Dispatcher) dispatch(id string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		// Submit blocks while every worker is busy
		err := d.pool.Submit(func() {
			defer d.wg.Done()
			d.execute(id)
		})
		if err != nil {
			d.wg.Done()
			d.logger.Error("error submitting job", "job_id", id, "err", err)
		}
	}()
}

// execute claims a pending job and runs it to a final state.
func (d *Dispatcher) execute(id string) {
	if d.ctx.Err() != nil {
		return
	}
	job, err := d.jobs.UpdateJob(d.ctx, id, func(j *core.Job) error {
		if j.State != core.JobPending {
			return errSkip
		}
		j.State = core.JobRunning
		j.StartedAt = d.now().UTC()
		return nil
	})
	if errors.Is(err, errSkip) {
		return
	}
	if err != nil {
		d.logger.Error("error claiming job", "job_id", id, "err", err)
		return
	}

	logger := d.logger.With("job_id", job.Id, "kind", job.Kind)
	h, ok := d.handlers[job.Kind]
	if !ok {
		d.finish(logger, job.Id, core.JobFailed, nil, fmt.Errorf("%w: %s", core.ErrUnknownJobKind, job.Kind))
		return
	}

	// Attempts already used by a previous process still count
	base := job.Attempt
	if base >= job.MaxAttempts {
		d.fail(logger, h, job, fmt.Errorf("%w: attempt %d of %d was interrupted", ErrAttemptsExhausted, base, job.MaxAttempts))
		return
	}

	policy := h.Policy()
	backoff := policy.Backoff
	policy.MaxAttempts = job.MaxAttempts - base
	policy.Backoff = func(attempt int) time.Duration {
		return backoff(base + attempt)
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("job attempt failed, retrying", "attempt", base+attempt, "delay", delay, "err", err)
		_, uerr := d.jobs.UpdateJob(context.Background(), job.Id, func(j *core.Job) error {
			j.LastError = core.TruncateMessage(err.Error(), maxErrorLength)
			return nil
		})
		if uerr != nil {
			logger.Error("error recording attempt", "err", uerr)
		}
	}

	result, err := retry.Run(d.ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
		n := base + attempt
		if _, err := d.jobs.UpdateJob(ctx, job.Id, func(j *core.Job) error {
			j.Attempt = n
			return nil
		}); err != nil {
			return nil, err
		}
		logger.Debug("running job", "attempt", n)
		return h.Handle(ctx, job.Payload, n)
	})

	switch {
	case err == nil:
		d.finish(logger, job.Id, core.JobSucceeded, result, nil)
	case d.ctx.Err() != nil:
		d.requeue(logger, job.Id)
	case retry.IsDropped(err):
		d.finish(logger, job.Id, core.JobDropped, nil, err)
	default:
		d.fail(logger, h, job, err)
	}
}

// fail records the failure on the job's target, then on the job.
func (d *Dispatcher) fail(logger *slog.Logger, h Handler, job *core.Job, cause error) {
	if fh, ok := h.(FailureHandler); ok {
		if err := fh.Failed(context.Background(), job.Payload, cause); err != nil {
			logger.Error("error recording failure on target", "err", err)
		}
	}
	d.finish(logger, job.Id, core.JobFailed, nil, cause)
}

func (d *Dispatcher) finish(logger *slog.Logger, id string, state core.JobState, result []byte, cause error) {
	_, err := d.jobs.UpdateJob(context.Background(), id, func(j *core.Job) error {
		j.State = state
		j.Result = result
		j.FinishedAt = d.now().UTC()
		if cause != nil {
			j.LastError = core.TruncateMessage(cause.Error(), maxErrorLength)
		}
		return nil
	})
	if err != nil {
		logger.Error("error finishing job", "state", state, "err", err)
		return
	}
	switch state {
	case core.JobSucceeded:
		logger.Info("job succeeded")
	case core.JobDropped:
		logger.Info("job dropped, target no longer exists", "cause", cause)
	default:
		logger.Error("job failed", "cause", cause)
	}
}

// requeue returns a job interrupted by shutdown to pending.
func (d *Dispatcher) requeue(logger *slog.Logger, id string) {
	_, err := d.jobs.UpdateJob(context.Background(), id, func(j *core.Job) error {
		if j.State != core.JobRunning {
			return errSkip
		}
		j.State = core.JobPending
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		logger.Error("error requeueing job", "err", err)
		return
	}
	logger.Info("job interrupted by shutdown, left pending")
}
