package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/ai/mock"
	"github.com/poiesic/studyplanner/contextcache"
	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	stores   *badger.Stores
	cache    *contextcache.Cache
	provider *mock.MockProvider
	answerer *mock.MockAnswerer
	job      *Job
	topic    *core.Topic
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// flakySessions fails AppendSession while failing is set.
type flakySessions struct {
	storage.SessionRepository
	failing bool
}

func (s *flakySessions) AppendSession(ctx context.Context, session *core.StudySession) (*core.StudySession, error) {
	if s.failing {
		return nil, errors.New("disk full")
	}
	return s.SessionRepository.AppendSession(ctx, session)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	cache, err := contextcache.New(stores.Cache)
	require.NoError(t, err)

	answerer := mock.NewMockAnswerer()
	answerer.ModelName = "deepseek-chat"
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), map[string]*mock.MockAnswerer{
		"deepseek": answerer,
	}, "deepseek")

	topics, err := stores.Topics.AddTopics(context.Background(), &core.Topic{
		OwnerId: 7,
		Name:    "Linear Algebra",
		Kind:    "lecture",
	})
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), step: 1500 * time.Millisecond}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	job, err := NewJob(stores.Topics, stores.Sessions, cache, provider, opts...)
	require.NoError(t, err)

	return &fixture{
		stores:   stores,
		cache:    cache,
		provider: provider,
		answerer: answerer,
		job:      job,
		topic:    topics[0],
	}
}

func (f *fixture) request(question string) Request {
	return Request{OwnerID: f.topic.OwnerId, TopicID: f.topic.Id, Question: question}
}

func TestNewJob_Validation(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	cache, err := contextcache.New(stores.Cache)
	require.NoError(t, err)
	provider := mock.NewMockProvider()

	tests := []struct {
		name    string
		build   func() (*Job, error)
		wantErr error
	}{
		{"nil topics", func() (*Job, error) { return NewJob(nil, stores.Sessions, cache, provider) }, ErrTopicRepositoryRequired},
		{"nil sessions", func() (*Job, error) { return NewJob(stores.Topics, nil, cache, provider) }, ErrSessionRepositoryRequired},
		{"nil cache", func() (*Job, error) { return NewJob(stores.Topics, stores.Sessions, nil, provider) }, ErrContextCacheRequired},
		{"nil provider", func() (*Job, error) { return NewJob(stores.Topics, stores.Sessions, cache, nil) }, ErrAIProviderRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("bad option", func(t *testing.T) {
		_, err := NewJob(stores.Topics, stores.Sessions, cache, provider, WithMaxTokens(0))
		assert.Error(t, err)
	})
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.job.Run(ctx, f.request("What is an eigenvector?"))
	require.NoError(t, err)

	assert.NotZero(t, res.SessionID)
	assert.Equal(t, "answer: As a student learning 'Linear Algebra' (lecture), I have the following question: What is an eigenvector?", res.Answer)
	assert.Equal(t, 1500*time.Millisecond, res.ElapsedTime)
	assert.InDelta(t, 1.5, res.ElapsedSeconds, 1e-9)
	assert.Equal(t, "deepseek-chat", res.Model)

	requests := f.answerer.Requests()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.Contains(t, req.SystemPrompt, "'Linear Algebra' (lecture)")
	assert.Contains(t, req.SystemPrompt, "Always answer in English.")
	assert.Empty(t, req.History)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, 2048, req.MaxTokens)

	session, err := f.stores.Sessions.GetSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "What is an eigenvector?", session.Question)
	assert.Equal(t, res.Answer, session.Answer)
	assert.Equal(t, 1500*time.Millisecond, session.ElapsedTime)
	assert.Equal(t, "deepseek-chat", session.Model)

	history := f.cache.Get(ctx, f.topic.OwnerId, f.topic.Id)
	require.Len(t, history, 2)
	assert.Equal(t, core.ConversationTurn{Role: core.RoleUser, Content: "What is an eigenvector?"}, history[0])
	assert.Equal(t, core.RoleAssistant, history[1].Role)
	assert.Equal(t, res.Answer, history[1].Content)
}

func TestRun_UsesHistory(t *testing.T) {
	f := newFixture(t, WithLanguage("Polish"), WithTemperature(0.2), WithMaxTokens(300))
	ctx := context.Background()

	_, err := f.job.Run(ctx, f.request("first"))
	require.NoError(t, err)
	_, err = f.job.Run(ctx, f.request("second"))
	require.NoError(t, err)

	requests := f.answerer.Requests()
	require.Len(t, requests, 2)
	assert.Len(t, requests[1].History, 2)
	assert.Equal(t, "first", requests[1].History[0].Content)
	assert.Contains(t, requests[1].SystemPrompt, "Always answer in Polish.")
	assert.InDelta(t, 0.2, requests[1].Temperature, 1e-9)
	assert.Equal(t, 300, requests[1].MaxTokens)
}

func TestRun_HistoryBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := f.cache.HistoryLimit()

	for i := range limit + 3 {
		_, err := f.job.Run(ctx, f.request(fmt.Sprintf("q%d", i)))
		require.NoError(t, err)
	}

	for _, req := range f.answerer.Requests() {
		assert.LessOrEqual(t, len(req.History), 2*limit)
	}
	history := f.cache.Get(ctx, f.topic.OwnerId, f.topic.Id)
	require.Len(t, history, 2*limit)
	assert.Equal(t, "q3", history[0].Content)

	sessions, err := f.stores.Sessions.GetRecentSessions(ctx, f.topic.OwnerId, f.topic.Id, 100)
	require.NoError(t, err)
	assert.Len(t, sessions, limit+3)
}

func TestRun_Classification(t *testing.T) {
	ctx := context.Background()

	t.Run("missing topic drops", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("q")
		req.TopicID = f.topic.Id + 99

		_, err := f.job.Run(ctx, req)
		assert.Equal(t, retry.Dropped, retry.Classify(err))
		assert.Zero(t, f.answerer.CallCount())
	})

	t.Run("topic of another owner drops", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("q")
		req.OwnerID = 999

		_, err := f.job.Run(ctx, req)
		assert.Equal(t, retry.Dropped, retry.Classify(err))
	})

	t.Run("empty question fails", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.job.Run(ctx, f.request("   "))
		assert.Equal(t, retry.Terminal, retry.Classify(err))
		assert.ErrorIs(t, err, core.ErrEmptyQuestion)
	})

	t.Run("unknown model fails", func(t *testing.T) {
		f := newFixture(t)
		req := f.request("q")
		req.Model = "claude-opus"

		_, err := f.job.Run(ctx, req)
		assert.Equal(t, retry.Terminal, retry.Classify(err))
		assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	})

	t.Run("model error is retryable and records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.answerer.AnswerFunc = func(ctx context.Context, req ai.AnswerRequest) (string, error) {
			return "", errors.New("503 overloaded")
		}

		_, err := f.job.Run(ctx, f.request("q"))
		require.Error(t, err)
		assert.Equal(t, retry.Retryable, retry.Classify(err))

		sessions, err := f.stores.Sessions.GetRecentSessions(ctx, f.topic.OwnerId, f.topic.Id, 10)
		require.NoError(t, err)
		assert.Empty(t, sessions)
		assert.Empty(t, f.cache.Get(ctx, f.topic.OwnerId, f.topic.Id))
	})
}

func TestRun_SessionWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessions := &flakySessions{SessionRepository: f.stores.Sessions, failing: true}
	job, err := NewJob(f.stores.Topics, sessions, f.cache, f.provider)
	require.NoError(t, err)

	_, err = job.Run(ctx, f.request("What is a basis?"))
	require.Error(t, err)
	assert.Equal(t, retry.Retryable, retry.Classify(err))
	assert.Equal(t, 1, f.answerer.CallCount())
	assert.Empty(t, f.cache.Get(ctx, f.topic.OwnerId, f.topic.Id))

	// The retry records the pair exactly once
	sessions.failing = false
	_, err = job.Run(ctx, f.request("What is a basis?"))
	require.NoError(t, err)
	history := f.cache.Get(ctx, f.topic.OwnerId, f.topic.Id)
	require.Len(t, history, 2)
	assert.Equal(t, "What is a basis?", history[0].Content)
	assert.Empty(t, f.answerer.Requests()[1].History)
}

func TestRun_TimeoutApplied(t *testing.T) {
	f := newFixture(t, WithTimeout(20*time.Millisecond))
	f.answerer.AnswerFunc = func(ctx context.Context, req ai.AnswerRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.job.Run(context.Background(), f.request("slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_UnderRetry(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.answerer.AnswerFunc = func(ctx context.Context, req ai.AnswerRequest) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "finally", nil
	}

	policy := retry.AnswerPolicy(3, time.Millisecond)
	res, err := retry.Run(context.Background(), policy, func(ctx context.Context, attempt int) (*Result, error) {
		return f.job.Run(ctx, f.request("q"))
	})
	require.NoError(t, err)
	assert.Equal(t, "finally", res.Answer)
	assert.Equal(t, 3, calls)

	sessions, err := f.stores.Sessions.GetRecentSessions(context.Background(), f.topic.OwnerId, f.topic.Id, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.job, retry.AnswerPolicy(3, time.Millisecond))
	ctx := context.Background()

	assert.Equal(t, core.JobKindAnswer, h.Kind())
	assert.Equal(t, 3, h.Policy().MaxAttempts)
	assert.Empty(t, h.DedupKey(nil))

	t.Run("round trip", func(t *testing.T) {
		payload, err := json.Marshal(f.request("What is a basis?"))
		require.NoError(t, err)

		out, err := h.Handle(ctx, payload, 1)
		require.NoError(t, err)

		var res Result
		require.NoError(t, json.Unmarshal(out, &res))
		assert.NotZero(t, res.SessionID)
		assert.Equal(t, "deepseek-chat", res.Model)
		assert.InDelta(t, 1.5, res.ElapsedSeconds, 1e-9)
	})

	t.Run("bad payload fails", func(t *testing.T) {
		_, err := h.Handle(ctx, []byte("{not json"), 1)
		assert.Equal(t, retry.Terminal, retry.Classify(err))
	})
}
