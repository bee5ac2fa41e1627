// Package tutor answers study questions with an AI model.
//
// A Job resolves the student's topic, replays recent conversation from the
// context cache, asks the selected model, records the exchange as a study
// session and finally appends it to the context window. The session log is
// always written before the context cache.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/contextcache"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/storage"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 120 * time.Second
)

// Request asks one question about a topic.
type Request struct {
	OwnerID  core.ID `json:"owner_id"`
	TopicID  core.ID `json:"topic_id"`
	Question string  `json:"question"`
	// Model selects the provider; empty uses the configured default.
	Model string `json:"model,omitempty"`
}

// Validate checks the request fields.
func (r Request) Validate() error {
	switch {
	case r.OwnerID == 0:
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrMissingOwner)
	case r.TopicID == 0:
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrMissingTopic)
	case strings.TrimSpace(r.Question) == "":
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrEmptyQuestion)
	}
	return nil
}

// Result is the answered question.
type Result struct {
	SessionID      core.ID       `json:"session_id"`
	Answer         string        `json:"answer"`
	ElapsedTime    time.Duration `json:"-"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Model          string        `json:"model"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Job runs a single tutoring attempt. It is safe for concurrent use.
type Job struct {
	topics      storage.TopicRepository
	sessions    storage.SessionRepository
	cache       *contextcache.Cache
	provider    ai.AIProvider
	temperature float64
	maxTokens   int
	timeout     time.Duration
	language    string
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Job.
type Option func(*Job) error

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(j *Job) error {
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature %v out of range", t)
		}
		j.temperature = t
		return nil
	}
}

// WithMaxTokens sets the answer length limit.
func WithMaxTokens(n int) Option {
	return func(j *Job) error {
		if n < 1 {
			return fmt.Errorf("max tokens must be positive, got %d", n)
		}
		j.maxTokens = n
		return nil
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(j *Job) error {
		j.timeout = d
		return nil
	}
}

// WithLanguage sets the language answers are written in.
func WithLanguage(language string) Option {
	return func(j *Job) error {
		j.language = language
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) error {
		j.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) error {
		j.logger = logger.With("component", "tutor")
		return nil
	}
}

// NewJob creates a Job.
func NewJob(topics storage.TopicRepository, sessions storage.SessionRepository, cache *contextcache.Cache, provider ai.AIProvider, opts ...Option) (*Job, error) {
	if topics == nil {
		return nil, ErrTopicRepositoryRequired
	}
	if sessions == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if cache == nil {
		return nil, ErrContextCacheRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	j := &Job{
		topics:      topics,
		sessions:    sessions,
		cache:       cache,
		provider:    provider,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     DefaultTimeout,
		language:    ai.DefaultLanguage,
		now:         time.Now,
		logger:      slog.Default().With("component", "tutor"),
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Run performs one attempt. Errors are classified for retry.Run: a vanished
// topic drops the job, a bad request or unknown model fails it, anything
// else is retried.
func (j *Job) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, retry.Fail(err)
	}
	logger := j.logger.With("owner_id", req.OwnerID, "topic_id", req.TopicID)

	topic, err := j.topics.GetOwnedTopic(ctx, req.OwnerID, req.TopicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("topic vanished, dropping question")
			return nil, retry.Drop(fmt.Errorf("topic %d: %w", req.TopicID, err))
		}
		return nil, fmt.Errorf("load topic: %w", err)
	}

	answerer, err := j.provider.Answerer(ctx, req.Model)
	if err != nil {
		if errors.Is(err, ai.ErrUnknownProvider) || errors.Is(err, ai.ErrMissingAPIKey) || errors.Is(err, ai.ErrInvalidConfig) {
			return nil, retry.Fail(err)
		}
		return nil, err
	}

	history := j.cache.Get(ctx, req.OwnerID, req.TopicID)
	answerReq := ai.AnswerRequest{
		SystemPrompt: ai.TutorSystemPrompt(topic.Name, topic.Kind, j.language),
		History:      history,
		Question:     ai.StudentQuestion(topic.Name, topic.Kind, req.Question),
		Temperature:  j.temperature,
		MaxTokens:    j.maxTokens,
	}

	callCtx := ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := j.now()
	answer, err := answerer.Answer(callCtx, answerReq)
	elapsed := j.now().Sub(start)
	if err != nil {
		logger.Warn("model call failed", "model", answerer.Model(), "elapsed", elapsed, "err", err)
		return nil, fmt.Errorf("answer with %s: %w", answerer.Model(), err)
	}

	session, err := j.sessions.AppendSession(ctx, &core.StudySession{
		OwnerId:     req.OwnerID,
		TopicId:     req.TopicID,
		Question:    req.Question,
		Answer:      answer,
		ElapsedTime: elapsed,
		Model:       answerer.Model(),
		CreatedAt:   start,
	})
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	j.cache.Append(ctx, req.OwnerID, req.TopicID, req.Question, answer)

	logger.Info("answered question", "session_id", session.Id, "model", session.Model,
		"elapsed", elapsed, "history", len(history))
	return &Result{
		SessionID:      session.Id,
		Answer:         answer,
		ElapsedTime:    elapsed,
		ElapsedSeconds: elapsed.Seconds(),
		Model:          session.Model,
		Timestamp:      session.CreatedAt,
	}, nil
}
