package vectorindex

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/studyplanner/core"
)

// Payload field names stored with every chunk point.
const (
	FieldOwnerID    = "owner_id"
	FieldTopicID    = "topic_id"
	FieldDocumentID = "document_id"
	FieldChunkIndex = "chunk_index"
	FieldSourceRef  = "source_ref"
	FieldText       = "text"
)

// DefaultIndexedFields are the payload fields that get keyword indexes.
// Retrieval filters on owner and topic; pruning filters on document.
var DefaultIndexedFields = []string{FieldOwnerID, FieldTopicID, FieldDocumentID}

// Distance is the similarity metric of a collection.
type Distance string

const (
	Cosine    Distance = "cosine"
	Dot       Distance = "dot"
	Euclid    Distance = "euclid"
	Manhattan Distance = "manhattan"
)

// ParseDistance parses a metric name case-insensitively.
func ParseDistance(s string) (Distance, error) {
	d := Distance(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Cosine, Dot, Euclid, Manhattan:
		return d, nil
	case "euclidean":
		return Euclid, nil
	default:
		return "", fmt.Errorf("%w: unknown distance metric %q", ErrMissingConfiguration, s)
	}
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name          string
	VectorSize    uint64
	Distance      Distance
	IndexedFields []string
}

// HasIndex reports whether field already has a payload index.
func (c *CollectionInfo) HasIndex(field string) bool {
	return slices.Contains(c.IndexedFields, field)
}

// Client is a connection to a vector index.
// Implementations must be safe for concurrent use.
type Client interface {
	// Ping probes the connection.
	Ping(ctx context.Context) error

	// GetCollection returns collection metadata.
	// Returns ErrCollectionNotFound if it does not exist.
	GetCollection(ctx context.Context, name string) (*CollectionInfo, error)

	// CreateCollection creates a collection.
	// Returns ErrAlreadyExists if another caller created it first.
	CreateCollection(ctx context.Context, name string, vectorSize uint64, distance Distance) error

	// CreatePayloadIndex creates a keyword index on a payload field.
	// Returns ErrAlreadyExists if the index exists.
	CreatePayloadIndex(ctx context.Context, collection, field string) error

	// Upsert writes points, overwriting any with the same ID.
	Upsert(ctx context.Context, collection string, points []core.VectorPoint) error

	// DeleteDocumentPoints removes points of a document whose chunk index is
	// at least fromChunk.
	DeleteDocumentPoints(ctx context.Context, collection string, documentID core.ID, fromChunk int) error

	// Close releases the connection.
	Close() error
}

// Dialer opens a new Client.
type Dialer func(ctx context.Context) (Client, error)
