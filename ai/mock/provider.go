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


package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/studyplanner/ai"
)

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder and mock answerers keyed by provider name.
type MockProvider struct {
	embedder  *MockEmbedder
	answerers map[string]*MockAnswerer
	fallback  string
}

// NewMockProvider creates a provider whose default answerer is registered
// under "mock".
func NewMockProvider() *MockProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), map[string]*MockAnswerer{
		"mock": NewMockAnswerer(),
	}, "mock")
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// fallback names the answerer used when a request names no provider.
func NewMockProviderWithServices(embedder *MockEmbedder, answerers map[string]*MockAnswerer, fallback string) *MockProvider {
	return &MockProvider{
		embedder:  embedder,
		answerers: answerers,
		fallback:  fallback,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Answerer returns the mock answerer registered under name.
func (p *MockProvider) Answerer(ctx context.Context, name string) (ai.Answerer, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = p.fallback
	}
	a, ok := p.answerers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, name)
	}
	return a, nil
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockAnswerer returns the mock answerer registered under name, or nil.
func (p *MockProvider) GetMockAnswerer(name string) *MockAnswerer {
	return p.answerers[name]
}
