package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// String renders the ID in decimal form, as used in vector payloads and cache keys.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkPointID returns the vector point ID for a chunk of a document.
// The same (document, index) pair always maps to the same point, so
// re-ingesting a document overwrites its previous points.
func ChunkPointID(documentID ID, chunkIndex int) ID {
	return IDFromContent("chunk:" + documentID.String() + ":" + strconv.Itoa(chunkIndex))
}

// ProcessingStatus tracks a document through ingestion.
type ProcessingStatus int

const (
	// StatusPending means the document is waiting to be ingested.
	StatusPending ProcessingStatus = iota + 1
	// StatusProcessing means an ingestion attempt is running or was interrupted.
	StatusProcessing
	// StatusCompleted means the document's chunks are indexed.
	StatusCompleted
	// StatusFailed means ingestion exhausted its retries.
	StatusFailed
)

func (s ProcessingStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further automatic transitions happen from s.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the last ingestion stage a document completed.
type Stage string

const (
	StageNone      Stage = ""
	StageExtracted Stage = "extracted"
	StageChunked   Stage = "chunked"
	StageEmbedded  Stage = "embedded"
	StageIndexed   Stage = "indexed"
	StageCompleted Stage = "completed"
)

// Document is an uploaded study file owned by a student within a topic.
type Document struct {
	Id             ID
	OwnerId        ID
	TopicId        ID
	BlobRef        string // Reference understood by the blob store
	Filename       string
	ContentType    string
	Status         ProcessingStatus
	ErrorMessage   string
	Stage          Stage
	ChunkCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StageUpdatedAt time.Time // Liveness marker used when re-driving stuck documents
}

// Topic is a study subject. The pipeline only reads topics.
type Topic struct {
	Id        ID
	OwnerId   ID
	Name      string
	Kind      string // Lesson form, e.g. "lecture" or "laboratory"
	CreatedAt time.Time
}

// StudySession is one answered tutoring question. Sessions are append-only.
type StudySession struct {
	Id          ID
	OwnerId     ID
	TopicId     ID
	Question    string
	Answer      string
	ElapsedTime time.Duration
	Model       string
	CreatedAt   time.Time
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is a single message in the tutoring context window.
type ConversationTurn struct {
	Role    Role
	Content string
}

// ChunkMetadata is attached to every chunk and stored alongside its vector.
type ChunkMetadata struct {
	OwnerId    ID
	TopicId    ID
	DocumentId ID
	ChunkIndex int
	SourceRef  string
}

// Chunk is a bounded slice of extracted document text.
type Chunk struct {
	Text     string
	Index    int
	Metadata ChunkMetadata
}

// VectorPoint is a chunk embedding as stored in the vector index.
type VectorPoint struct {
	Id       ID
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}
