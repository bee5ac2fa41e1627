package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 64, cfg.EmbeddingBatchSize)
	assert.Equal(t, ProviderDeepSeek, cfg.DefaultProvider)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, ProviderDeepSeek, cfg.DefaultProvider)
		assert.Equal(t, 2048, cfg.MaxTokens)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithEmbeddingBatchSize(16),
			WithDefaultProvider(ProviderGemini),
			WithTemperature(0.2),
			WithMaxTokens(512),
			WithTimeout(time.Second),
			WithGeminiAPIKey("g"),
			WithVertex("proj", "europe-west4"),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, 16, cfg.EmbeddingBatchSize)
		assert.Equal(t, ProviderGemini, cfg.DefaultProvider)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
		assert.Equal(t, 512, cfg.MaxTokens)
		assert.Equal(t, time.Second, cfg.Timeout)
		assert.Equal(t, "g", cfg.GeminiAPIKey)
		assert.Equal(t, "proj", cfg.VertexProject)
		assert.Equal(t, "europe-west4", cfg.VertexRegion)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost:   tt.host,
				OpenAIHost:      tt.host,
				DefaultProvider: " DeepSeek ",
			}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.OpenAIHost)
			assert.Equal(t, ProviderDeepSeek, cfg.DefaultProvider)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return NewConfig(WithDeepSeekAPIKey("sk-test"))
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingHost = "http://localhost:11434"

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		field   string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, ErrInvalidConfig, "EmbeddingHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, ErrInvalidConfig, "EmbeddingModel"},
		{"zero batch size", func(c *Config) { c.EmbeddingBatchSize = 0 }, ErrInvalidConfig, "EmbeddingBatchSize"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidConfig, "Temperature"},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidConfig, "MaxTokens"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidConfig, "Timeout"},
		{"unknown provider", func(c *Config) { c.DefaultProvider = "claude-3" }, ErrUnknownProvider, "claude-3"},
		{"missing deepseek key", func(c *Config) { c.DeepSeekAPIKey = "" }, ErrMissingAPIKey, "DEEPSEEK_API_KEY"},
		{"missing openai key for gpt-4o", func(c *Config) { c.DefaultProvider = ProviderGPT4o }, ErrMissingAPIKey, "OPENAI_API_KEY"},
		{"missing gemini key", func(c *Config) { c.DefaultProvider = ProviderGemini }, ErrMissingAPIKey, "GEMINI_API_KEY"},
		{"missing vertex project", func(c *Config) { c.DefaultProvider = ProviderVertex }, ErrInvalidConfig, "VertexProject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestCheckProvider(t *testing.T) {
	cfg := NewConfig(WithOpenAIAPIKey("sk"), WithVertex("p", "r"))

	assert.NoError(t, cfg.CheckProvider(ProviderGPT4o))
	assert.NoError(t, cfg.CheckProvider(ProviderOpenAI))
	assert.NoError(t, cfg.CheckProvider(ProviderVertex))
	assert.ErrorIs(t, cfg.CheckProvider(ProviderDeepSeek), ErrMissingAPIKey)
	assert.ErrorIs(t, cfg.CheckProvider("llama"), ErrUnknownProvider)
}

func TestEmbeddingToken(t *testing.T) {
	t.Run("explicit key wins", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingAPIKey("embed"), WithOpenAIAPIKey("sk"))
		assert.Equal(t, "embed", cfg.EmbeddingToken())
	})

	t.Run("openai key for hosted embeddings", func(t *testing.T) {
		cfg := NewConfig(WithOpenAIAPIKey("sk"))
		assert.Equal(t, "sk", cfg.EmbeddingToken())
	})

	t.Run("placeholder for local server", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://localhost:11434/v1"), WithOpenAIAPIKey("sk"))
		assert.Equal(t, "none", cfg.EmbeddingToken())
	})
}
