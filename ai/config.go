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


package ai

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Registered answering providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderGPT4o    = "gpt-4o"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderVertex   = "vertex"
)

// Providers lists every registered provider name.
var Providers = []string{ProviderDeepSeek, ProviderGPT4o, ProviderOpenAI, ProviderGemini, ProviderVertex}

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates against the embedding host.
	// Falls back to OpenAIAPIKey, then to a placeholder for local servers.
	EmbeddingAPIKey string

	// EmbeddingBatchSize caps the number of texts per embedding request.
	// Default: 64
	EmbeddingBatchSize int

	// DefaultProvider answers requests that name no model.
	// Default: "deepseek"
	DefaultProvider string

	// Temperature and MaxTokens are applied to every answer request.
	// Defaults: 0.7 and 2048
	Temperature float64
	MaxTokens   int

	// Timeout bounds a single model call.
	// Default: 120s
	Timeout time.Duration

	DeepSeekAPIKey string
	OpenAIAPIKey   string
	GeminiAPIKey   string

	// OpenAIHost and OpenAIModel configure the generic "openai" provider,
	// which accepts any OpenAI-compatible server.
	OpenAIHost  string
	OpenAIModel string

	// GeminiModel is the model used by the "gemini" provider.
	GeminiModel string

	// Vertex AI settings. Credentials come from the ambient Google
	// application default credentials.
	VertexProject string
	VertexRegion  string
	VertexModel   string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding service key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithEmbeddingBatchSize sets the embedding request batch size.
func WithEmbeddingBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBatchSize = size
	}
}

// WithDefaultProvider sets the provider used when a request names none.
func WithDefaultProvider(name string) ConfigOption {
	return func(c *Config) {
		c.DefaultProvider = name
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the answer length limit.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithDeepSeekAPIKey sets the DeepSeek key.
func WithDeepSeekAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.DeepSeekAPIKey = key
	}
}

// WithOpenAIAPIKey sets the OpenAI key.
func WithOpenAIAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.OpenAIAPIKey = key
	}
}

// WithGeminiAPIKey sets the Gemini key.
func WithGeminiAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.GeminiAPIKey = key
	}
}

// WithOpenAIHost sets the host and model of the generic OpenAI-compatible provider.
func WithOpenAIHost(host, model string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
		c.OpenAIModel = model
	}
}

// WithVertex sets the Vertex AI project and region.
func WithVertex(project, region string) ConfigOption {
	return func(c *Config) {
		c.VertexProject = project
		c.VertexRegion = region
	}
}

// DefaultConfig returns a Config with defaults for the hosted DeepSeek tutor
// and OpenAI embeddings.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:      "https://api.openai.com/v1",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingBatchSize: 64,
		DefaultProvider:    ProviderDeepSeek,
		Temperature:        0.7,
		MaxTokens:          2048,
		Timeout:            120 * time.Second,
		OpenAIHost:         "https://api.openai.com/v1",
		OpenAIModel:        "gpt-4o-mini",
		GeminiModel:        "gemini-1.5-flash",
		VertexRegion:       "us-central1",
		VertexModel:        "gemini-1.5-pro",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("embeddinggemma"),
//	    WithDefaultProvider(ProviderGemini),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to OpenAI-compatible hosts if missing and
// lower-cases the default provider name.
func (c *Config) Normalize() {
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.OpenAIHost = withV1(c.OpenAIHost)
	c.DefaultProvider = strings.ToLower(strings.TrimSpace(c.DefaultProvider))
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete, including
// credentials for the default provider.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: EmbeddingHost is required", ErrInvalidConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: EmbeddingModel is required", ErrInvalidConfig)
	}
	if c.EmbeddingBatchSize < 1 {
		return fmt.Errorf("%w: EmbeddingBatchSize must be positive", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: Temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: MaxTokens must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: Timeout must be positive", ErrInvalidConfig)
	}
	if !slices.Contains(Providers, c.DefaultProvider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.DefaultProvider)
	}
	return c.CheckProvider(c.DefaultProvider)
}

// CheckProvider reports whether name is registered and has the settings it needs.
func (c *Config) CheckProvider(name string) error {
	switch name {
	case ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return fmt.Errorf("%w: DEEPSEEK_API_KEY is required for %s", ErrMissingAPIKey, name)
		}
	case ProviderGPT4o:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for %s", ErrMissingAPIKey, name)
		}
	case ProviderOpenAI:
		if c.OpenAIHost == "" || c.OpenAIModel == "" {
			return fmt.Errorf("%w: OpenAIHost and OpenAIModel are required for %s", ErrInvalidConfig, name)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for %s", ErrMissingAPIKey, name)
		}
	case ProviderVertex:
		if c.VertexProject == "" || c.VertexRegion == "" {
			return fmt.Errorf("%w: VertexProject and VertexRegion are required for %s", ErrInvalidConfig, name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return nil
}

// EmbeddingToken returns the key sent to the embedding host.
func (c *Config) EmbeddingToken() string {
	switch {
	case c.EmbeddingAPIKey != "":
		return c.EmbeddingAPIKey
	case c.OpenAIAPIKey != "" && strings.Contains(c.EmbeddingHost, "api.openai.com"):
		return c.OpenAIAPIKey
	default:
		// Local OpenAI-compatible servers accept any token
		return "none"
	}
}
