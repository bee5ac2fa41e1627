package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/studyplanner/core"
)

// embedChunks generates a vector per chunk and builds the points to upsert.
// Point IDs depend only on document and chunk index, so a re-ingested
// document overwrites its earlier points.
func (p *Pipeline) embedChunks(ctx context.Context, at *attempt) error {
	texts := make([]string, len(at.chunks))
	for i, chunk := range at.chunks {
		texts[i] = chunk.Text
	}

	p.logger.Debug("generating embeddings for chunks", "document_id", at.doc.Id, "chunks", len(texts))
	embedCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()
	embeddings, err := p.embedder.EmbedTexts(embedCtx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if len(embeddings) != len(at.chunks) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(at.chunks), len(embeddings))
	}

	points := make([]core.VectorPoint, len(at.chunks))
	for i, chunk := range at.chunks {
		points[i] = core.VectorPoint{
			Id:       core.ChunkPointID(chunk.Metadata.DocumentId, chunk.Index),
			Vector:   embeddings[i],
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
		}
	}
	at.points = points
	return nil
}
