package ingestion

import (
	"bytes"
	"context"
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

type fakeEnqueuer struct {
	mu        sync.Mutex
	queued    []core.ID
	duplicate map[core.ID]bool
}

func (e *fakeEnqueuer) EnqueueIngestion(ctx context.Context, documentID core.ID) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.duplicate[documentID] {
		return "", fmt.Errorf("document %d: %w", documentID, storage.ErrDuplicateKey)
	}
	e.queued = append(e.queued, documentID)
	return fmt.Sprintf("job-%d", documentID), nil
}

func TestNewRedriver_Validation(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	_, err = NewRedriver(nil, &fakeEnqueuer{})
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)
	_, err = NewRedriver(stores.Documents, nil)
	assert.ErrorIs(t, err, ErrEnqueuerRequired)
}

func TestRedrive(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	add := func(status core.ProcessingStatus, stageAt time.Time) *core.Document {
		docs, err := stores.Documents.AddDocuments(ctx, &core.Document{OwnerId: 1, TopicId: 2, BlobRef: "doc.pdf"})
		require.NoError(t, err)
		doc, err := stores.Documents.UpdateDocument(ctx, docs[0].Id, func(d *core.Document) error {
			d.Status = status
			d.StageUpdatedAt = stageAt
			if status == core.StatusFailed {
				d.ErrorMessage = "no text"
			}
			d.Stage = core.StageChunked
			return nil
		})
		require.NoError(t, err)
		return doc
	}

	failed := add(core.StatusFailed, now)
	stale := add(core.StatusProcessing, now.Add(-2*time.Hour))
	busy := add(core.StatusProcessing, now.Add(time.Hour))
	completed := add(core.StatusCompleted, now.Add(-2*time.Hour))
	queued := add(core.StatusFailed, now)

	enqueuer := &fakeEnqueuer{duplicate: map[core.ID]bool{queued.Id: true}}
	var progress bytes.Buffer
	redriver, err := NewRedriver(stores.Documents, enqueuer,
		WithProgress(&progress),
		WithRedriveClock(func() time.Time { return now }))
	require.NoError(t, err)

	report, err := redriver.Redrive(ctx, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Requeued)
	assert.Equal(t, 1, report.Skipped)
	assert.ElementsMatch(t, []core.ID{failed.Id, stale.Id}, enqueuer.queued)
	assert.Len(t, report.Jobs, 2)
	assert.Contains(t, progress.String(), "3/3 documents")

	for _, id := range []core.ID{failed.Id, stale.Id} {
		doc, err := stores.Documents.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusPending, doc.Status)
		assert.Empty(t, doc.ErrorMessage)
		assert.Equal(t, core.StageNone, doc.Stage)
	}

	doc, err := stores.Documents.GetDocument(ctx, busy.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, doc.Status)

	doc, err = stores.Documents.GetDocument(ctx, completed.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, doc.Status)
}

func TestRedrive_DefaultStaleAfter(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	_, err = stores.Documents.AddDocuments(ctx, &core.Document{OwnerId: 1, TopicId: 2, BlobRef: "fresh.txt"})
	require.NoError(t, err)

	enqueuer := &fakeEnqueuer{}
	redriver, err := NewRedriver(stores.Documents, enqueuer)
	require.NoError(t, err)

	report, err := redriver.Redrive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Requeued)
	assert.Empty(t, enqueuer.queued)
}
