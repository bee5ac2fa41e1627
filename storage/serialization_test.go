package storage

import (
	"testing"
	"time"

	"github.com/poiesic/studyplanner/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		Id:             7,
		OwnerId:        3,
		TopicId:        11,
		BlobRef:        "materials/3/notes.pdf",
		Filename:       "notes.pdf",
		ContentType:    "application/pdf",
		Status:         core.StatusFailed,
		ErrorMessage:   "no text",
		Stage:          core.StageExtracted,
		ChunkCount:     4,
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now,
		StageUpdatedAt: now,
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshalDocument_ZeroTimes(t *testing.T) {
	doc := &core.Document{Id: 1, OwnerId: 1, TopicId: 1, BlobRef: "a.txt", Status: core.StatusPending}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.IsZero())
	assert.True(t, decoded.StageUpdatedAt.IsZero())
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshalStudySession(t *testing.T) {
	session := &core.StudySession{
		Id:          5,
		OwnerId:     1,
		TopicId:     2,
		Question:    "What is a derivative?",
		Answer:      "The rate of change.",
		ElapsedTime: 1500 * time.Millisecond,
		Model:       "deepseek",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalStudySession(MarshalStudySession(session))
	require.NoError(t, err)
	assert.Equal(t, session, decoded)
}

func TestMarshalUnmarshalJob(t *testing.T) {
	job := &core.Job{
		Id:          "0b8f5c1e-8a57-4b7b-9f0a-3c8f8d1f2a10",
		Kind:        core.JobKindIngestion,
		Payload:     []byte(`{"document_id":7}`),
		State:       core.JobRunning,
		Attempt:     2,
		MaxAttempts: 3,
		LastError:   "timeout",
		DedupKey:    "ingest:7",
		EnqueuedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
	assert.Nil(t, decoded.Result)
}

func TestMarshalUnmarshalTurns(t *testing.T) {
	turns := []core.ConversationTurn{
		{Role: core.RoleUser, Content: "Explain limits"},
		{Role: core.RoleAssistant, Content: "A limit describes..."},
	}

	decoded, err := UnmarshalTurns(MarshalTurns(turns))
	require.NoError(t, err)
	assert.Equal(t, turns, decoded)

	empty, err := UnmarshalTurns(MarshalTurns(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnmarshalTurns_Truncated(t *testing.T) {
	data := MarshalTurns([]core.ConversationTurn{{Role: core.RoleUser, Content: "hello there"}})

	_, err := UnmarshalTurns(data[:len(data)-3])
	assert.Error(t, err)
}

func TestMarshalUnmarshalPoint(t *testing.T) {
	point := &core.VectorPoint{
		Id:     core.ChunkPointID(7, 2),
		Vector: []float32{0.25, -0.5, 1},
		Text:   "chunk text",
		Metadata: core.ChunkMetadata{
			OwnerId:    1,
			TopicId:    2,
			DocumentId: 7,
			ChunkIndex: 2,
			SourceRef:  "notes.pdf",
		},
	}

	decoded, err := UnmarshalPoint(MarshalPoint(point))
	require.NoError(t, err)
	assert.Equal(t, point, decoded)
}
