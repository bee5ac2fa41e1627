// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package contextcache keeps the recent tutoring conversation for each
// (owner, topic) pair in a key/value store with expiry.
//
// The cache is best effort. Reads that fail yield an empty history and writes
// that fail are logged, so a broken cache never fails an answer job.
// Concurrent appends for the same pair may lose one of the updates.
package contextcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
)

const (
	DefaultHistoryLimit = 5
	DefaultTTL          = time.Hour
	keyPrefix           = "conversation_context"
)

// Backend stores opaque values with a time to live.
// Get returns storage.ErrNotFound for a missing or expired key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache holds at most 2*historyLimit turns per pair, oldest first.
type Cache struct {
	backend      Backend
	historyLimit int
	ttl          time.Duration
	logger       *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache) error

// WithHistoryLimit sets how many question/answer pairs are kept.
func WithHistoryLimit(limit int) Option {
	return func(c *Cache) error {
		if limit <= 0 {
			return fmt.Errorf("history limit must be positive, got %d", limit)
		}
		c.historyLimit = limit
		return nil
	}
}

// WithTTL sets how long an idle conversation is kept.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "context-cache")
		return nil
	}
}

// New creates a Cache on backend.
func New(backend Backend, opts ...Option) (*Cache, error) {
	if backend == nil {
		return nil, errors.New("context cache backend is required")
	}
	c := &Cache{
		backend:      backend,
		historyLimit: DefaultHistoryLimit,
		ttl:          DefaultTTL,
		logger:       slog.Default().With("component", "context-cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Key returns the storage key for an (owner, topic) pair.
func Key(ownerID, topicID core.ID) string {
	return fmt.Sprintf("%s:%d:%d", keyPrefix, ownerID, topicID)
}

// HistoryLimit returns the number of pairs kept.
func (c *Cache) HistoryLimit() int {
	return c.historyLimit
}

// Get returns the cached turns for the pair, oldest first. It never fails.
func (c *Cache) Get(ctx context.Context, ownerID, topicID core.ID) []core.ConversationTurn {
	turns, err := c.load(ctx, Key(ownerID, topicID))
	if err != nil {
		c.logger.Warn("failed to read conversation context",
			"owner_id", ownerID, "topic_id", topicID, "err", err)
		return nil
	}
	return c.trim(turns)
}

// Append adds a question/answer pair, trims to the limit and refreshes the
// expiry. Errors are logged.
func (c *Cache) Append(ctx context.Context, ownerID, topicID core.ID, question, answer string) {
	key := Key(ownerID, topicID)
	logger := c.logger.With("owner_id", ownerID, "topic_id", topicID)

	turns, err := c.load(ctx, key)
	if err != nil {
		// Start over rather than keep a window we cannot read
		logger.Warn("discarding unreadable conversation context", "err", err)
		turns = nil
	}
	turns = append(turns,
		core.ConversationTurn{Role: core.RoleUser, Content: question},
		core.ConversationTurn{Role: core.RoleAssistant, Content: answer},
	)
	turns = c.trim(turns)

	if err := c.backend.Set(ctx, key, storage.MarshalTurns(turns), c.ttl); err != nil {
		logger.Error("failed to write conversation context", "err", err)
	}
}

// Clear forgets the pair's conversation. Errors are logged.
func (c *Cache) Clear(ctx context.Context, ownerID, topicID core.ID) {
	if err := c.backend.Delete(ctx, Key(ownerID, topicID)); err != nil {
		c.logger.Error("failed to clear conversation context",
			"owner_id", ownerID, "topic_id", topicID, "err", err)
	}
}

func (c *Cache) load(ctx context.Context, key string) ([]core.ConversationTurn, error) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return storage.UnmarshalTurns(data)
}

func (c *Cache) trim(turns []core.ConversationTurn) []core.ConversationTurn {
	limit := 2 * c.historyLimit
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}
