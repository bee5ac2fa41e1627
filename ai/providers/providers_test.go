package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingAnswerer struct {
	*mock.MockAnswerer
	closed bool
}

func (c *closingAnswerer) Close() error {
	c.closed = true
	return nil
}

func testConfig() *ai.Config {
	return ai.NewConfig(ai.WithDeepSeekAPIKey("sk-deepseek"))
}

func TestNewAnswerer(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewAnswerer(ctx, "claude", testConfig())
		assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	})

	t.Run("deepseek", func(t *testing.T) {
		a, err := NewAnswerer(ctx, "DeepSeek", testConfig())
		require.NoError(t, err)
		assert.Equal(t, "deepseek-chat", a.Model())
	})

	t.Run("gpt-4o without key", func(t *testing.T) {
		_, err := NewAnswerer(ctx, "gpt-4o", testConfig())
		assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
	})

	t.Run("gpt-4o", func(t *testing.T) {
		cfg := testConfig()
		cfg.OpenAIAPIKey = "sk-openai"
		a, err := NewAnswerer(ctx, "gpt-4o", cfg)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", a.Model())
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid config", func(t *testing.T) {
		_, err := New(ai.NewConfig())
		assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
	})

	t.Run("caches answerers and resolves default", func(t *testing.T) {
		builds := 0
		answerer := mock.NewMockAnswerer()
		reg, err := New(testConfig(),
			WithEmbedder(mock.NewMockEmbedder()),
			WithFactory(ai.ProviderDeepSeek, func(ctx context.Context, c *ai.Config) (ai.Answerer, error) {
				builds++
				return answerer, nil
			}),
		)
		require.NoError(t, err)

		a1, err := reg.Answerer(ctx, "")
		require.NoError(t, err)
		a2, err := reg.Answerer(ctx, " deepseek ")
		require.NoError(t, err)

		assert.Same(t, answerer, a1)
		assert.Same(t, a1, a2)
		assert.Equal(t, 1, builds)
		assert.NotNil(t, reg.Embedder())
	})

	t.Run("unknown name", func(t *testing.T) {
		reg, err := New(testConfig(), WithEmbedder(mock.NewMockEmbedder()))
		require.NoError(t, err)

		_, err = reg.Answerer(ctx, "llama-70b")
		assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	})

	t.Run("factory error is not cached", func(t *testing.T) {
		calls := 0
		reg, err := New(testConfig(),
			WithEmbedder(mock.NewMockEmbedder()),
			WithFactory("flaky", func(ctx context.Context, c *ai.Config) (ai.Answerer, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("dial failed")
				}
				return mock.NewMockAnswerer(), nil
			}),
		)
		require.NoError(t, err)

		_, err = reg.Answerer(ctx, "flaky")
		require.Error(t, err)
		_, err = reg.Answerer(ctx, "flaky")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("close releases closers", func(t *testing.T) {
		closer := &closingAnswerer{MockAnswerer: mock.NewMockAnswerer()}
		reg, err := New(testConfig(),
			WithEmbedder(mock.NewMockEmbedder()),
			WithFactory(ai.ProviderGemini, func(ctx context.Context, c *ai.Config) (ai.Answerer, error) {
				return closer, nil
			}),
		)
		require.NoError(t, err)

		_, err = reg.Answerer(ctx, ai.ProviderGemini)
		require.NoError(t, err)
		require.NoError(t, reg.Close())
		assert.True(t, closer.closed)
	})

	t.Run("nil factory rejected", func(t *testing.T) {
		_, err := New(testConfig(), WithFactory("x", nil))
		assert.Error(t, err)
	})
}
