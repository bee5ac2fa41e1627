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


// Package qdrant implements vectorindex.Client on the Qdrant gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/vectorindex"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	grpcPort = 6334
	restPort = 6333
)

// api is the subset of *qdrant.Client used here.
type api interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Config holds connection settings.
type Config struct {
	// URL of the server, e.g. "http://localhost:6334" or "https://xyz.cloud.qdrant.io".
	URL    string
	APIKey string
}

// ParseURL converts a server URL into client settings.
// The REST port is mapped to the gRPC port since only gRPC is spoken here.
func ParseURL(raw string) (*qdrant.Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: vector index URL is empty", vectorindex.ErrMissingConfiguration)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vectorindex.ErrMissingConfiguration, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: no host in %q", vectorindex.ErrMissingConfiguration, raw)
	}

	cfg := &qdrant.Config{
		Host:   u.Hostname(),
		Port:   grpcPort,
		UseTLS: u.Scheme == "https",
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad port %q", vectorindex.ErrMissingConfiguration, p)
		}
		if port != restPort {
			cfg.Port = port
		}
	}
	return cfg, nil
}

// Client is a vectorindex.Client backed by Qdrant.
type Client struct {
	api api
}

var _ vectorindex.Client = (*Client)(nil)

// Dial opens a client. No request is made until the first call.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	qcfg, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	qcfg.APIKey = cfg.APIKey
	qcfg.SkipCompatibilityCheck = true

	c, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vectorindex.ErrConnection, err)
	}
	return &Client{api: c}, nil
}

// Dialer returns a vectorindex.Dialer for cfg.
func Dialer(cfg Config) vectorindex.Dialer {
	return func(ctx context.Context) (vectorindex.Client, error) {
		return Dial(ctx, cfg)
	}
}

// Ping runs a health check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.HealthCheck(ctx)
	return mapError(err)
}

// GetCollection returns the collection's vector params and indexed payload fields.
func (c *Client) GetCollection(ctx context.Context, name string) (*vectorindex.CollectionInfo, error) {
	info, err := c.api.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, mapError(err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return nil, fmt.Errorf("%w: %s uses named vectors", vectorindex.ErrCollectionMismatch, name)
	}
	result := &vectorindex.CollectionInfo{
		Name:       name,
		VectorSize: params.GetSize(),
		Distance:   fromDistance(params.GetDistance()),
	}
	for field := range info.GetPayloadSchema() {
		result.IndexedFields = append(result.IndexedFields, field)
	}
	return result, nil
}

// CreateCollection creates a single-vector collection.
func (c *Client) CreateCollection(ctx context.Context, name string, vectorSize uint64, distance vectorindex.Distance) error {
	err := c.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: toDistance(distance),
		}),
	})
	return mapError(err)
}

// CreatePayloadIndex creates a payload index on field. The chunk index gets
// an integer index so range deletes can use it; everything else is a keyword.
func (c *Client) CreatePayloadIndex(ctx context.Context, collection, field string) error {
	fieldType := qdrant.FieldType_FieldTypeKeyword
	if field == vectorindex.FieldChunkIndex {
		fieldType = qdrant.FieldType_FieldTypeInteger
	}
	_, err := c.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      fieldType.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	return mapError(err)
}

// Upsert writes points and waits for them to be applied.
func (c *Client) Upsert(ctx context.Context, collection string, points []core.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i := range points {
		structs[i] = toPointStruct(&points[i])
	}
	_, err := c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	return mapError(err)
}

// DeleteDocumentPoints deletes a document's points with chunk_index >= fromChunk.
func (c *Client) DeleteDocumentPoints(ctx context.Context, collection string, documentID core.ID, fromChunk int) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(vectorindex.FieldDocumentID, documentID.String()),
			qdrant.NewRange(vectorindex.FieldChunkIndex, &qdrant.Range{
				Gte: qdrant.PtrOf(float64(fromChunk)),
			}),
		},
	}
	_, err := c.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	return mapError(err)
}

// Close closes the gRPC connections.
func (c *Client) Close() error {
	return c.api.Close()
}

func toPointStruct(point *core.VectorPoint) *qdrant.PointStruct {
	meta := point.Metadata
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(point.Id)),
		Vectors: qdrant.NewVectorsDense(point.Vector),
		Payload: qdrant.NewValueMap(map[string]any{
			vectorindex.FieldOwnerID:    meta.OwnerId.String(),
			vectorindex.FieldTopicID:    meta.TopicId.String(),
			vectorindex.FieldDocumentID: meta.DocumentId.String(),
			vectorindex.FieldChunkIndex: int64(meta.ChunkIndex),
			vectorindex.FieldSourceRef:  meta.SourceRef,
			vectorindex.FieldText:       point.Text,
		}),
	}
}

func toDistance(d vectorindex.Distance) qdrant.Distance {
	switch d {
	case vectorindex.Dot:
		return qdrant.Distance_Dot
	case vectorindex.Euclid:
		return qdrant.Distance_Euclid
	case vectorindex.Manhattan:
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func fromDistance(d qdrant.Distance) vectorindex.Distance {
	switch d {
	case qdrant.Distance_Dot:
		return vectorindex.Dot
	case qdrant.Distance_Euclid:
		return vectorindex.Euclid
	case qdrant.Distance_Manhattan:
		return vectorindex.Manhattan
	case qdrant.Distance_Cosine:
		return vectorindex.Cosine
	default:
		return vectorindex.Distance(strings.ToLower(d.String()))
	}
}

// mapError translates gRPC status codes into vectorindex sentinels.
// Older servers report some conflicts only in the message text.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %w", vectorindex.ErrAlreadyExists, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %w", vectorindex.ErrCollectionNotFound, err)
	case codes.Unavailable:
		return fmt.Errorf("%w: %w", vectorindex.ErrConnection, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %w", vectorindex.ErrAlreadyExists, err)
	case strings.Contains(msg, "doesn't exist"), strings.Contains(msg, "not found"):
		return fmt.Errorf("%w: %w", vectorindex.ErrCollectionNotFound, err)
	}
	return err
}
