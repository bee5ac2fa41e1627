package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore keeps blobs as objects in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	logger *slog.Logger
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to bucket using application default credentials
// unless opts say otherwise.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		logger: slog.Default().With("component", "gcs-blob", "bucket", bucket),
	}, nil
}

// Open returns a reader for the object named ref.
func (s *GCSStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	name, err := CleanRef(ref)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(name, err)
	}
	return r, nil
}

// Put uploads r to a new object. Existing objects are never overwritten.
func (s *GCSStore) Put(ctx context.Context, ref string, r io.Reader) error {
	name, err := CleanRef(ref)
	if err != nil {
		return err
	}
	w := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return mapGCSError(name, err)
	}
	s.logger.Debug("uploaded blob", "object", name)
	return nil
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func mapGCSError(name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %s", ErrExists, name)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}
	return fmt.Errorf("gcs object %s: %w", name, err)
}
