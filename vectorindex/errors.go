package vectorindex

import "errors"

var (
	// ErrMissingConfiguration is returned when the index cannot be configured.
	// It is fatal and never retried.
	ErrMissingConfiguration = errors.New("vector index configuration missing or invalid")

	// ErrConnection is returned when the index cannot be reached.
	// Callers may retry.
	ErrConnection = errors.New("vector index connection failed")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrAlreadyExists is returned when a collection or payload index exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrCollectionMismatch is returned when an existing collection has a
	// different vector size or distance than configured.
	ErrCollectionMismatch = errors.New("collection does not match configuration")

	// ErrClosed is returned after the holder is closed.
	ErrClosed = errors.New("vector index holder closed")
)
