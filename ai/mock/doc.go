// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Answerer,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	answerer := provider.GetMockAnswerer("mock")
//	answerer.AnswerFunc = func(ctx context.Context, req ai.AnswerRequest) (string, error) {
//	    return "", errors.New("model overloaded")
//	}
//
//	embedder := mock.NewMockEmbedder()
//	embedder.Dimension = 8
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockAnswerer: Echoes the question and records every request
//   - MockProvider: Aggregates mock embedder and answerers
package mock
