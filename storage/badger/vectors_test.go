package badger

import (
	"context"
	"testing"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/storage"
	"github.com/poiesic/studyplanner/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoints(documentID core.ID, count int) []core.VectorPoint {
	points := make([]core.VectorPoint, count)
	for i := range points {
		points[i] = core.VectorPoint{
			Id:     core.ChunkPointID(documentID, i),
			Vector: []float32{float32(i), 1, 0},
			Text:   "chunk",
			Metadata: core.ChunkMetadata{
				OwnerId:    1,
				TopicId:    2,
				DocumentId: documentID,
				ChunkIndex: i,
			},
		}
	}
	return points
}

func TestVectorStore_Collections(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	vs := stores.Vectors

	_, err := vs.GetCollection(ctx, "chunks")
	assert.ErrorIs(t, err, vectorindex.ErrCollectionNotFound)

	require.NoError(t, vs.CreateCollection(ctx, "chunks", 3, vectorindex.Cosine))
	err = vs.CreateCollection(ctx, "chunks", 3, vectorindex.Cosine)
	assert.ErrorIs(t, err, vectorindex.ErrAlreadyExists)

	require.NoError(t, vs.CreatePayloadIndex(ctx, "chunks", vectorindex.FieldOwnerID))
	err = vs.CreatePayloadIndex(ctx, "chunks", vectorindex.FieldOwnerID)
	assert.ErrorIs(t, err, vectorindex.ErrAlreadyExists)

	err = vs.CreatePayloadIndex(ctx, "missing", vectorindex.FieldOwnerID)
	assert.ErrorIs(t, err, vectorindex.ErrCollectionNotFound)

	info, err := vs.GetCollection(ctx, "chunks")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.VectorSize)
	assert.Equal(t, vectorindex.Cosine, info.Distance)
	assert.True(t, info.HasIndex(vectorindex.FieldOwnerID))
	assert.False(t, info.HasIndex(vectorindex.FieldTopicID))
}

func TestVectorStore_UpsertAndPrune(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	vs := stores.Vectors
	require.NoError(t, vs.CreateCollection(ctx, "chunks", 3, vectorindex.Cosine))

	require.NoError(t, vs.Upsert(ctx, "chunks", testPoints(5, 4)))
	require.NoError(t, vs.Upsert(ctx, "chunks", testPoints(6, 2)))

	// Re-indexing with fewer chunks overwrites, then prunes the tail
	require.NoError(t, vs.Upsert(ctx, "chunks", testPoints(5, 2)))
	require.NoError(t, vs.DeleteDocumentPoints(ctx, "chunks", 5, 2))

	points, err := vs.DocumentPoints(ctx, "chunks", 5)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 0, points[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, points[1].Metadata.ChunkIndex)

	other, err := vs.DocumentPoints(ctx, "chunks", 6)
	require.NoError(t, err)
	assert.Len(t, other, 2)
}

func TestVectorStore_UpsertErrors(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	vs := stores.Vectors

	err := vs.Upsert(ctx, "chunks", testPoints(1, 1))
	assert.ErrorIs(t, err, vectorindex.ErrCollectionNotFound)

	require.NoError(t, vs.CreateCollection(ctx, "chunks", 8, vectorindex.Cosine))
	err = vs.Upsert(ctx, "chunks", testPoints(1, 1))
	assert.Error(t, err)
}

func TestVectorStore_Close(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	vs := NewVectorStore(stores.Backend)
	require.NoError(t, vs.Ping(ctx))
	require.NoError(t, vs.Close())
	assert.ErrorIs(t, vs.Ping(ctx), storage.ErrStorageClosed)

	// The shared backend stays usable
	assert.NoError(t, stores.Vectors.Ping(ctx))
}
