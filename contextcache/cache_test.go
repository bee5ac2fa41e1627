package contextcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is a map-backed Backend whose calls can be made to fail.
type memBackend struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	delErr  error
	setKeys []string
}

func newMemBackend() *memBackend {
	return &memBackend{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.ttls[key] = ttl
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *memBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.values, key)
	return nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, "conversation_context:7:3", Key(7, 3))
	assert.NotEqual(t, Key(7, 3), Key(3, 7))
}

func TestNew_Options(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(newMemBackend(), WithHistoryLimit(0))
	assert.Error(t, err)

	_, err = New(newMemBackend(), WithTTL(-time.Second))
	assert.Error(t, err)

	c, err := New(newMemBackend(), WithHistoryLimit(2), WithTTL(time.Minute), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, c.HistoryLimit())
}

func TestAppend_TrimsOldestFirst(t *testing.T) {
	backend := newMemBackend()
	c, err := New(backend, WithHistoryLimit(2))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		c.Append(ctx, 1, 2, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := c.Get(ctx, 1, 2)
	require.Len(t, turns, 4)
	assert.Equal(t, core.ConversationTurn{Role: core.RoleUser, Content: "q2"}, turns[0])
	assert.Equal(t, core.ConversationTurn{Role: core.RoleAssistant, Content: "a2"}, turns[1])
	assert.Equal(t, "q3", turns[2].Content)
	assert.Equal(t, "a3", turns[3].Content)

	assert.Equal(t, DefaultTTL, backend.ttls[Key(1, 2)])
}

func TestGet_TrimsOversizedEntries(t *testing.T) {
	backend := newMemBackend()
	var turns []core.ConversationTurn
	for i := range 30 {
		turns = append(turns, core.ConversationTurn{Role: core.RoleUser, Content: fmt.Sprint(i)})
	}
	backend.values[Key(1, 1)] = storage.MarshalTurns(turns)

	c, err := New(backend)
	require.NoError(t, err)

	got := c.Get(context.Background(), 1, 1)
	require.Len(t, got, 2*DefaultHistoryLimit)
	assert.Equal(t, "20", got[0].Content)
	assert.Equal(t, "29", got[len(got)-1].Content)
}

func TestPairsAreIsolated(t *testing.T) {
	c, err := New(newMemBackend())
	require.NoError(t, err)
	ctx := context.Background()

	c.Append(ctx, 1, 1, "q", "a")
	assert.Empty(t, c.Get(ctx, 1, 2))
	assert.Empty(t, c.Get(ctx, 2, 1))
	assert.Len(t, c.Get(ctx, 1, 1), 2)

	c.Clear(ctx, 1, 1)
	assert.Empty(t, c.Get(ctx, 1, 1))
}

func TestBackendFailuresDoNotPropagate(t *testing.T) {
	backend := newMemBackend()
	c, err := New(backend)
	require.NoError(t, err)
	ctx := context.Background()

	backend.getErr = errors.New("connection refused")
	assert.Empty(t, c.Get(ctx, 1, 1))

	// Unreadable window is replaced by the new pair
	c.Append(ctx, 1, 1, "q", "a")
	backend.getErr = nil
	assert.Len(t, c.Get(ctx, 1, 1), 2)

	backend.setErr = errors.New("read only")
	c.Append(ctx, 1, 1, "q2", "a2")
	assert.Len(t, c.Get(ctx, 1, 1), 2)

	backend.delErr = errors.New("read only")
	c.Clear(ctx, 1, 1)
	assert.Len(t, c.Get(ctx, 1, 1), 2)
}

func TestGet_CorruptEntry(t *testing.T) {
	backend := newMemBackend()
	backend.values[Key(1, 1)] = []byte{0xFF, 0xFF, 0xFF}
	c, err := New(backend)
	require.NoError(t, err)

	assert.Empty(t, c.Get(context.Background(), 1, 1))
}

func TestWithBadgerBackend(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	c, err := New(stores.Cache, WithHistoryLimit(1), WithTTL(time.Minute))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Empty(t, c.Get(ctx, 4, 5))
	c.Append(ctx, 4, 5, "first", "one")
	c.Append(ctx, 4, 5, "second", "two")

	turns := c.Get(ctx, 4, 5)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[0].Content)
	assert.Equal(t, "two", turns[1].Content)

	c.Clear(ctx, 4, 5)
	assert.Empty(t, c.Get(ctx, 4, 5))
}
