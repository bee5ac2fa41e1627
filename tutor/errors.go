package tutor

import "errors"

var (
	// ErrTopicRepositoryRequired is returned when a topic repository is not provided.
	ErrTopicRepositoryRequired = errors.New("topic repository required")

	// ErrSessionRepositoryRequired is returned when a session repository is not provided.
	ErrSessionRepositoryRequired = errors.New("session repository required")

	// ErrContextCacheRequired is returned when a context cache is not provided.
	ErrContextCacheRequired = errors.New("context cache required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidRequest indicates a request missing its owner, topic or question.
	ErrInvalidRequest = errors.New("invalid answer request")
)
