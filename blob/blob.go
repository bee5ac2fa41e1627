// Package blob reads and writes uploaded study documents.
//
// Documents reference their content by a slash-separated relative path
// (the blob ref). FSStore resolves refs under a local root directory and
// GCSStore resolves them as object names in a Cloud Storage bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound indicates no blob exists for the ref.
	ErrNotFound = errors.New("blob not found")

	// ErrExists indicates a Put would overwrite an existing blob.
	ErrExists = errors.New("blob already exists")

	// ErrInvalidRef indicates a ref that is empty or escapes the store root.
	ErrInvalidRef = errors.New("invalid blob ref")
)

// Store provides access to document content.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open returns a reader for the blob. The caller closes it.
	// Returns ErrNotFound if the blob doesn't exist.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Put stores r under ref. Returns ErrExists if ref is taken.
	Put(ctx context.Context, ref string, r io.Reader) error

	// Close releases resources held by the store.
	Close() error
}

// CleanRef validates ref and returns its canonical form.
func CleanRef(ref string) (string, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	cleaned := path.Clean(strings.TrimPrefix(ref, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return cleaned, nil
}
