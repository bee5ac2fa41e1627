package queue

import (
	"errors"
	"fmt"

	"github.com/poiesic/studyplanner/storage"
)

var (
	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrDuplicateJob is returned when a job's dedup key is held by an active job.
	// It wraps storage.ErrDuplicateKey.
	ErrDuplicateJob = fmt.Errorf("job already active: %w", storage.ErrDuplicateKey)

	// ErrJobNotFound is returned when polling an unknown handle.
	// It wraps storage.ErrNotFound.
	ErrJobNotFound = fmt.Errorf("job: %w", storage.ErrNotFound)

	// ErrAttemptsExhausted is recorded on a recovered job whose last allowed
	// attempt was interrupted.
	ErrAttemptsExhausted = errors.New("attempts exhausted")

	// ErrClosed is returned after the dispatcher is closed.
	ErrClosed = errors.New("dispatcher closed")
)
