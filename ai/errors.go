package ai

import "errors"

var (
	// ErrUnknownProvider indicates a model identifier with no registered provider.
	ErrUnknownProvider = errors.New("unknown ai provider")

	// ErrMissingAPIKey indicates a provider was selected without credentials.
	ErrMissingAPIKey = errors.New("missing api key")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrInvalidConfig indicates an ai.Config failed validation.
	ErrInvalidConfig = errors.New("invalid ai config")
)
