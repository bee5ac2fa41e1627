// Package providers selects AI answering providers by name.
//
// Every answering backend registers a Factory under the identifier clients
// send as the requested model ("deepseek", "gpt-4o", "openai", "gemini",
// "vertex"). A Registry builds each provider on first use and reuses it.
package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/ai/gemini"
	"github.com/poiesic/studyplanner/ai/openai"
	"github.com/poiesic/studyplanner/ai/vertex"
)

// Factory builds an answerer from configuration.
type Factory func(ctx context.Context, config *ai.Config) (ai.Answerer, error)

var builtin = map[string]Factory{
	ai.ProviderDeepSeek: func(_ context.Context, c *ai.Config) (ai.Answerer, error) { return openai.NewDeepSeek(c) },
	ai.ProviderGPT4o:    func(_ context.Context, c *ai.Config) (ai.Answerer, error) { return openai.NewGPT4o(c) },
	ai.ProviderOpenAI:   func(_ context.Context, c *ai.Config) (ai.Answerer, error) { return openai.NewCompatible(c) },
	ai.ProviderGemini:   func(ctx context.Context, c *ai.Config) (ai.Answerer, error) { return gemini.New(ctx, c) },
	ai.ProviderVertex:   func(ctx context.Context, c *ai.Config) (ai.Answerer, error) { return vertex.New(ctx, c) },
}

// NewAnswerer builds the answerer registered under name.
// Returns ai.ErrUnknownProvider for unregistered names.
func NewAnswerer(ctx context.Context, name string, config *ai.Config) (ai.Answerer, error) {
	factory, ok := builtin[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, name)
	}
	return factory(ctx, config)
}

// Registry implements ai.AIProvider, caching one answerer per provider name.
type Registry struct {
	config    *ai.Config
	embedder  ai.Embedder
	factories map[string]Factory
	mu        sync.Mutex
	answerers map[string]ai.Answerer
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry) error

// WithEmbedder replaces the OpenAI-compatible embedder built from config.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(r *Registry) error {
		r.embedder = embedder
		return nil
	}
}

// WithFactory registers or overrides the factory for name.
func WithFactory(name string, factory Factory) Option {
	return func(r *Registry) error {
		if factory == nil {
			return fmt.Errorf("nil factory for %q", name)
		}
		r.factories[normalize(name)] = factory
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger.With("component", "ai-providers")
		return nil
	}
}

// New validates config and creates a Registry.
func New(config *ai.Config, opts ...Option) (*Registry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		config:    config,
		factories: make(map[string]Factory, len(builtin)),
		answerers: make(map[string]ai.Answerer),
		logger:    slog.Default().With("component", "ai-providers"),
	}
	for name, f := range builtin {
		r.factories[name] = f
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.embedder == nil {
		embedder, err := openai.NewEmbedder(config)
		if err != nil {
			return nil, err
		}
		r.embedder = embedder
	}
	return r, nil
}

// Embedder returns the text embedding service.
func (r *Registry) Embedder() ai.Embedder {
	return r.embedder
}

// Answerer returns the answerer for name, building it on first use.
// An empty name selects the configured default provider.
func (r *Registry) Answerer(ctx context.Context, name string) (ai.Answerer, error) {
	key := normalize(name)
	if key == "" {
		key = r.config.DefaultProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.answerers[key]; ok {
		return a, nil
	}
	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, name)
	}
	a, err := factory(ctx, r.config)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", key, err)
	}
	r.logger.Debug("created answerer", "provider", key, "model", a.Model())
	r.answerers[key] = a
	return a, nil
}

// Close releases every answerer that holds a connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, a := range r.answerers {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(r.answerers, name)
	}
	return firstErr
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
