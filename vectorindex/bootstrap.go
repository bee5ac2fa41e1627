package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CollectionSpec is the configured shape of the chunk collection.
type CollectionSpec struct {
	Name          string
	VectorSize    uint64
	Distance      Distance
	IndexedFields []string
}

// Validate checks the spec. Errors wrap ErrMissingConfiguration.
func (s CollectionSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: collection name is required", ErrMissingConfiguration)
	}
	if s.VectorSize == 0 {
		return fmt.Errorf("%w: vector size is required", ErrMissingConfiguration)
	}
	if _, err := ParseDistance(string(s.Distance)); err != nil {
		return err
	}
	return nil
}

// Bootstrap makes sure the chunk collection and its payload indexes exist
// before anything is written to it. It is safe to call from many workers and
// many processes at once: losing a creation race is not an error.
type Bootstrap struct {
	holder   *Holder
	group    singleflight.Group
	mu       sync.Mutex
	verified map[string]bool
	indexed  map[string]bool // collection + "/" + field
	logger   *slog.Logger
}

// BootstrapOption configures a Bootstrap.
type BootstrapOption func(*Bootstrap) error

// WithBootstrapLogger sets a custom logger.
func WithBootstrapLogger(logger *slog.Logger) BootstrapOption {
	return func(b *Bootstrap) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "vector-bootstrap")
		return nil
	}
}

// NewBootstrap creates a Bootstrap using the holder's connection.
func NewBootstrap(holder *Holder, opts ...BootstrapOption) (*Bootstrap, error) {
	if holder == nil {
		return nil, fmt.Errorf("%w: holder is required", ErrMissingConfiguration)
	}
	b := &Bootstrap{
		holder:   holder,
		verified: make(map[string]bool),
		indexed:  make(map[string]bool),
		logger:   slog.Default().With("component", "vector-bootstrap"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// EnsureCollection returns a live client whose collection matches spec,
// creating the collection and missing payload indexes as needed.
func (b *Bootstrap) EnsureCollection(ctx context.Context, spec CollectionSpec) (Client, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	distance, _ := ParseDistance(string(spec.Distance))
	spec.Distance = distance

	client, err := b.holder.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if b.isVerified(spec.Name) {
		return client, nil
	}

	_, err, _ = b.group.Do(spec.Name, func() (any, error) {
		if b.isVerified(spec.Name) {
			return nil, nil
		}
		return nil, b.ensure(ctx, client, spec)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Verified reports whether the collection has been verified by this process.
func (b *Bootstrap) Verified(name string) bool {
	return b.isVerified(name)
}

func (b *Bootstrap) ensure(ctx context.Context, client Client, spec CollectionSpec) error {
	logger := b.logger.With("collection", spec.Name)

	info, err := client.GetCollection(ctx, spec.Name)
	switch {
	case err == nil:
	case errors.Is(err, ErrCollectionNotFound):
		logger.Info("creating collection", "vector_size", spec.VectorSize, "distance", spec.Distance)
		err = client.CreateCollection(ctx, spec.Name, spec.VectorSize, spec.Distance)
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("create collection %s: %w", spec.Name, err)
		}
		if err != nil {
			logger.Debug("collection created concurrently")
		}
		info, err = client.GetCollection(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("describe collection %s: %w", spec.Name, err)
		}
	default:
		return fmt.Errorf("describe collection %s: %w", spec.Name, err)
	}

	if info.VectorSize != spec.VectorSize || info.Distance != spec.Distance {
		return fmt.Errorf("%w: %s has size %d/%s, configured %d/%s", ErrCollectionMismatch,
			spec.Name, info.VectorSize, info.Distance, spec.VectorSize, spec.Distance)
	}

	for _, field := range spec.IndexedFields {
		if info.HasIndex(field) || b.isIndexed(spec.Name, field) {
			continue
		}
		logger.Info("creating payload index", "field", field)
		err := client.CreatePayloadIndex(ctx, spec.Name, field)
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("create payload index %s.%s: %w", spec.Name, field, err)
		}
		b.markIndexed(spec.Name, field)
	}

	b.mu.Lock()
	b.verified[spec.Name] = true
	b.mu.Unlock()
	return nil
}

func (b *Bootstrap) isVerified(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verified[name]
}

func (b *Bootstrap) isIndexed(collection, field string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexed[collection+"/"+field]
}

func (b *Bootstrap) markIndexed(collection, field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed[collection+"/"+field] = true
}
