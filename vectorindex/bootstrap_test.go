package vectorindex

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() CollectionSpec {
	return CollectionSpec{
		Name:          "study_chunks",
		VectorSize:    4,
		Distance:      Cosine,
		IndexedFields: DefaultIndexedFields,
	}
}

func newTestBootstrap(t *testing.T, server *fakeServer) *Bootstrap {
	t.Helper()
	holder, err := NewHolder(func(ctx context.Context) (Client, error) {
		return &fakeClient{server: server}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })

	b, err := NewBootstrap(holder)
	require.NoError(t, err)
	return b
}

func TestCollectionSpec_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CollectionSpec)
	}{
		{"missing name", func(s *CollectionSpec) { s.Name = " " }},
		{"missing size", func(s *CollectionSpec) { s.VectorSize = 0 }},
		{"bad distance", func(s *CollectionSpec) { s.Distance = "hamming" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(&spec)
			assert.ErrorIs(t, spec.Validate(), ErrMissingConfiguration)
		})
	}
	assert.NoError(t, testSpec().Validate())
}

func TestEnsureCollection_Creates(t *testing.T) {
	server := newFakeServer()
	b := newTestBootstrap(t, server)

	client, err := b.EnsureCollection(context.Background(), testSpec())
	require.NoError(t, err)
	require.NotNil(t, client)

	info := server.collections["study_chunks"]
	require.NotNil(t, info)
	assert.Equal(t, uint64(4), info.VectorSize)
	assert.ElementsMatch(t, DefaultIndexedFields, info.IndexedFields)
	assert.True(t, b.Verified("study_chunks"))

	// Second call is served from the verified set
	_, err = b.EnsureCollection(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, server.createCalls)
	assert.Equal(t, len(DefaultIndexedFields), server.indexCalls)
}

func TestEnsureCollection_ExistingIsUsed(t *testing.T) {
	server := newFakeServer()
	server.collections["study_chunks"] = &CollectionInfo{
		Name:          "study_chunks",
		VectorSize:    4,
		Distance:      Cosine,
		IndexedFields: []string{FieldOwnerID},
	}
	b := newTestBootstrap(t, server)

	_, err := b.EnsureCollection(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, 0, server.createCalls)
	// Only the two missing indexes are created
	assert.Equal(t, 2, server.indexCalls)
}

func TestEnsureCollection_LostCreationRace(t *testing.T) {
	server := newFakeServer()
	server.racedCreation = true
	b := newTestBootstrap(t, server)

	_, err := b.EnsureCollection(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, b.Verified("study_chunks"))
}

func TestEnsureCollection_ConcurrentProcesses(t *testing.T) {
	server := newFakeServer()
	bootstraps := []*Bootstrap{newTestBootstrap(t, server), newTestBootstrap(t, server)}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(b *Bootstrap) {
			defer wg.Done()
			_, err := b.EnsureCollection(context.Background(), testSpec())
			assert.NoError(t, err)
		}(bootstraps[i%2])
	}
	wg.Wait()

	assert.Len(t, server.collections, 1)
	assert.ElementsMatch(t, DefaultIndexedFields, server.collections["study_chunks"].IndexedFields)
}

func TestEnsureCollection_Mismatch(t *testing.T) {
	server := newFakeServer()
	server.collections["study_chunks"] = &CollectionInfo{Name: "study_chunks", VectorSize: 1536, Distance: Cosine}
	b := newTestBootstrap(t, server)

	_, err := b.EnsureCollection(context.Background(), testSpec())
	assert.ErrorIs(t, err, ErrCollectionMismatch)
	assert.False(t, b.Verified("study_chunks"))
}

func TestEnsureCollection_CreateFailureIsRetriedNextCall(t *testing.T) {
	server := newFakeServer()
	server.createErr = errors.New("unavailable")
	b := newTestBootstrap(t, server)

	_, err := b.EnsureCollection(context.Background(), testSpec())
	require.Error(t, err)
	assert.False(t, b.Verified("study_chunks"))

	server.createErr = nil
	_, err = b.EnsureCollection(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, b.Verified("study_chunks"))
}

func TestEnsureCollection_InvalidSpec(t *testing.T) {
	b := newTestBootstrap(t, newFakeServer())
	_, err := b.EnsureCollection(context.Background(), CollectionSpec{Name: "x"})
	assert.ErrorIs(t, err, ErrMissingConfiguration)
}

func TestNewBootstrap_NilHolder(t *testing.T) {
	_, err := NewBootstrap(nil)
	assert.ErrorIs(t, err, ErrMissingConfiguration)
}
