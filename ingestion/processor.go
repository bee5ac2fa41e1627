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


package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/vectorindex"
)

// attempt carries the working state of one ingestion attempt between stages.
type attempt struct {
	doc    *core.Document
	text   string
	chunks []core.Chunk
	points []core.VectorPoint
}

// processor is one pipeline stage. marker is persisted on the document once
// run returns without error.
type processor struct {
	marker core.Stage
	run    func(ctx context.Context, at *attempt) error
}

// extractText reads the document's blob and extracts its text.
func (p *Pipeline) extractText(ctx context.Context, at *attempt) error {
	ctx, cancel := context.WithTimeout(ctx, p.blobTimeout)
	defer cancel()

	rc, err := p.blobs.Open(ctx, at.doc.BlobRef)
	if err != nil {
		return fmt.Errorf("open blob %s: %w", at.doc.BlobRef, err)
	}
	defer rc.Close()

	res, err := p.extractor.Extract(ctx, rc, at.doc.Filename, at.doc.ContentType)
	if err != nil {
		return fmt.Errorf("extract %s: %w", at.doc.BlobRef, err)
	}
	at.text = res.Text
	return nil
}

// chunkText splits the extracted text into tagged chunks.
func (p *Pipeline) chunkText(ctx context.Context, at *attempt) error {
	chunks, err := p.splitter.Split(at.text, core.ChunkMetadata{
		OwnerId:    at.doc.OwnerId,
		TopicId:    at.doc.TopicId,
		DocumentId: at.doc.Id,
		SourceRef:  at.doc.BlobRef,
	})
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	at.chunks = chunks
	return nil
}

// indexPoints upserts the embedded chunks, then prunes points left over
// from a longer previous version of the document.
func (p *Pipeline) indexPoints(ctx context.Context, at *attempt) error {
	ctx, cancel := context.WithTimeout(ctx, p.vectorTimeout)
	defer cancel()

	client, err := p.bootstrap.EnsureCollection(ctx, p.spec)
	if err != nil {
		if errors.Is(err, vectorindex.ErrCollectionMismatch) || errors.Is(err, vectorindex.ErrMissingConfiguration) {
			return retry.Fail(err)
		}
		return err
	}
	if err := client.Upsert(ctx, p.spec.Name, at.points); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(at.points), err)
	}
	if err := client.DeleteDocumentPoints(ctx, p.spec.Name, at.doc.Id, len(at.points)); err != nil {
		return fmt.Errorf("prune stale points: %w", err)
	}
	return nil
}
