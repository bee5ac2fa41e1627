package ai

import (
	"context"

	"github.com/poiesic/studyplanner/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerRequest is a single tutoring completion.
type AnswerRequest struct {
	// SystemPrompt sets the assistant's role and tone.
	SystemPrompt string

	// History holds earlier turns, oldest first.
	History []core.ConversationTurn

	// Question is the final user message, already wrapped for the model.
	Question string

	Temperature float64
	MaxTokens   int
}

// Answerer produces a tutoring answer from a model.
// Implementations must be thread-safe for concurrent use.
type Answerer interface {
	// Answer sends the request to the model and returns the reply text.
	// Returns ErrEmptyResponse if the model produced no text.
	Answer(ctx context.Context, req AnswerRequest) (string, error)

	// Model returns the identifier recorded on study sessions.
	Model() string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Answerer returns the answering service registered under name.
	// An empty name selects the configured default provider.
	// Returns ErrUnknownProvider for unregistered names.
	Answerer(ctx context.Context, name string) (Answerer, error)

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
