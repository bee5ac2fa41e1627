package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
)

// Payload is the queued form of an ingestion job.
type Payload struct {
	DocumentID core.ID `json:"document_id"`
}

// DedupKey is the key that keeps at most one ingestion job per document active.
func DedupKey(documentID core.ID) string {
	return "ingest:" + documentID.String()
}

// Handler adapts a Pipeline to the queue's JSON payload contract.
type Handler struct {
	pipeline *Pipeline
	policy   retry.Policy
}

// NewHandler wraps pipeline, running it under policy.
func NewHandler(pipeline *Pipeline, policy retry.Policy) *Handler {
	return &Handler{pipeline: pipeline, policy: policy}
}

// Kind returns core.JobKindIngestion.
func (h *Handler) Kind() core.JobKind {
	return core.JobKindIngestion
}

// Policy returns the retry policy for ingestion jobs.
func (h *Handler) Policy() retry.Policy {
	return h.policy
}

// Handle decodes a Payload, runs one attempt and encodes the Result.
func (h *Handler) Handle(ctx context.Context, payload []byte, attempt int) ([]byte, error) {
	p, err := decodePayload(payload)
	if err != nil {
		return nil, retry.Fail(err)
	}
	res, err := h.pipeline.Run(ctx, p.DocumentID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// DedupKey returns the document's dedup key, or "" for an unreadable payload.
func (h *Handler) DedupKey(payload []byte) string {
	p, err := decodePayload(payload)
	if err != nil {
		return ""
	}
	return DedupKey(p.DocumentID)
}

// Failed records the final cause on the document once the job has given up.
func (h *Handler) Failed(ctx context.Context, payload []byte, cause error) error {
	p, err := decodePayload(payload)
	if err != nil {
		return err
	}
	return h.pipeline.MarkFailed(ctx, p.DocumentID, cause)
}

func decodePayload(payload []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("decode ingestion payload: %w", err)
	}
	if p.DocumentID == 0 {
		return p, errors.New("decode ingestion payload: document_id is required")
	}
	return p, nil
}
