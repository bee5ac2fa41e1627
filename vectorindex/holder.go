package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type clientRef struct {
	Client
}

// Holder owns the process-wide vector index connection.
//
// The client is created lazily on first use. Client returns the cached
// connection without locking; Connect additionally probes it and, when the
// probe fails, replaces it with a fresh connection. Replacement is serialized
// so concurrent callers observing the same dead client reconnect only once.
type Holder struct {
	dial    Dialer
	current atomic.Pointer[clientRef]
	mu      sync.Mutex // held on the reconnect path only
	closed  atomic.Bool
	logger  *slog.Logger
}

// HolderOption configures a Holder.
type HolderOption func(*Holder) error

// WithHolderLogger sets a custom logger.
func WithHolderLogger(logger *slog.Logger) HolderOption {
	return func(h *Holder) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger.With("component", "vector-holder")
		return nil
	}
}

// NewHolder creates a Holder that opens connections with dial.
func NewHolder(dial Dialer, opts ...HolderOption) (*Holder, error) {
	if dial == nil {
		return nil, fmt.Errorf("%w: no dialer", ErrMissingConfiguration)
	}
	h := &Holder{
		dial:   dial,
		logger: slog.Default().With("component", "vector-holder"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Client returns the cached connection, dialing one if none exists.
func (h *Holder) Client(ctx context.Context) (Client, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	if ref := h.current.Load(); ref != nil {
		return ref.Client, nil
	}
	return h.reconnect(ctx, nil)
}

// Connect returns a connection that has just answered a liveness probe.
// A cached connection that fails the probe is closed and replaced once.
func (h *Holder) Connect(ctx context.Context) (Client, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	ref := h.current.Load()
	if ref != nil {
		err := ref.Ping(ctx)
		if err == nil {
			return ref.Client, nil
		}
		h.logger.Warn("vector index probe failed, reconnecting", "err", err)
	}
	return h.reconnect(ctx, ref)
}

// Invalidate drops stale so the next caller reconnects.
func (h *Holder) Invalidate(stale Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ref := h.current.Load()
	if ref == nil || ref.Client != stale {
		return
	}
	h.current.Store(nil)
	if err := stale.Close(); err != nil {
		h.logger.Debug("error closing stale vector client", "err", err)
	}
}

// Close closes the current connection. The holder cannot be reused.
func (h *Holder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed.Store(true)
	ref := h.current.Swap(nil)
	if ref == nil {
		return nil
	}
	return ref.Close()
}

func (h *Holder) reconnect(ctx context.Context, stale *clientRef) (Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return nil, ErrClosed
	}

	// Another caller already replaced the connection we saw
	if cur := h.current.Load(); cur != nil && cur != stale {
		return cur.Client, nil
	}

	if stale != nil {
		h.current.Store(nil)
		if err := stale.Close(); err != nil {
			h.logger.Debug("error closing stale vector client", "err", err)
		}
	}

	client, err := h.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	h.current.Store(&clientRef{Client: client})
	h.logger.Debug("vector index connected")
	return client, nil
}
