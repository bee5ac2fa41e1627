package vectorindex

import (
	"context"
	"sync"

	"github.com/poiesic/studyplanner/core"
)

// fakeClient is an in-memory Client. Collections are shared through
// fakeServer so several clients can race against the same state.
type fakeClient struct {
	server  *fakeServer
	pingErr error
	closed  bool
}

type fakeServer struct {
	mu            sync.Mutex
	collections   map[string]*CollectionInfo
	createCalls   int
	indexCalls    int
	createErr     error
	racedCreation bool // pretend someone else created the collection first
}

func newFakeServer() *fakeServer {
	return &fakeServer{collections: make(map[string]*CollectionInfo)}
}

func (c *fakeClient) Ping(ctx context.Context) error {
	return c.pingErr
}

func (c *fakeClient) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	info, ok := c.server.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	copied := *info
	copied.IndexedFields = append([]string(nil), info.IndexedFields...)
	return &copied, nil
}

func (c *fakeClient) CreateCollection(ctx context.Context, name string, vectorSize uint64, distance Distance) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.createCalls++
	if c.server.createErr != nil {
		return c.server.createErr
	}
	if c.server.racedCreation {
		c.server.collections[name] = &CollectionInfo{Name: name, VectorSize: vectorSize, Distance: distance}
		return ErrAlreadyExists
	}
	if _, ok := c.server.collections[name]; ok {
		return ErrAlreadyExists
	}
	c.server.collections[name] = &CollectionInfo{Name: name, VectorSize: vectorSize, Distance: distance}
	return nil
}

func (c *fakeClient) CreatePayloadIndex(ctx context.Context, collection, field string) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.indexCalls++
	info, ok := c.server.collections[collection]
	if !ok {
		return ErrCollectionNotFound
	}
	if info.HasIndex(field) {
		return ErrAlreadyExists
	}
	info.IndexedFields = append(info.IndexedFields, field)
	return nil
}

func (c *fakeClient) Upsert(ctx context.Context, collection string, points []core.VectorPoint) error {
	return nil
}

func (c *fakeClient) DeleteDocumentPoints(ctx context.Context, collection string, documentID core.ID, fromChunk int) error {
	return nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}
