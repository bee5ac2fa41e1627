package mock

import (
	"context"
	"sync"

	"github.com/poiesic/studyplanner/ai"
)

// MockAnswerer is a test double for ai.Answerer. It records every request.
type MockAnswerer struct {
	// AnswerFunc is called by Answer if set.
	// If nil, Answer echoes the question.
	AnswerFunc func(ctx context.Context, req ai.AnswerRequest) (string, error)

	// ModelName is returned by Model. Default: "mock".
	ModelName string

	mu       sync.Mutex
	requests []ai.AnswerRequest
}

// NewMockAnswerer creates a mock answerer that echoes questions.
func NewMockAnswerer() *MockAnswerer {
	return &MockAnswerer{ModelName: "mock"}
}

// Answer records req and returns the injected or echoed answer.
func (m *MockAnswerer) Answer(ctx context.Context, req ai.AnswerRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, req)
	}
	return "answer: " + req.Question, nil
}

// Model returns ModelName.
func (m *MockAnswerer) Model() string {
	return m.ModelName
}

// Requests returns a copy of the recorded requests.
func (m *MockAnswerer) Requests() []ai.AnswerRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.AnswerRequest(nil), m.requests...)
}

// CallCount returns the number of Answer calls.
func (m *MockAnswerer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
