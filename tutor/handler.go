package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/poiesic/studyplanner/core"
	"github.com/poiesic/studyplanner/retry"
)

// Handler adapts a Job to the queue's JSON payload contract.
type Handler struct {
	job    *Job
	policy retry.Policy
}

// NewHandler wraps job, running it under policy.
func NewHandler(job *Job, policy retry.Policy) *Handler {
	return &Handler{job: job, policy: policy}
}

// Kind returns core.JobKindAnswer.
func (h *Handler) Kind() core.JobKind {
	return core.JobKindAnswer
}

// Policy returns the retry policy for answer jobs.
func (h *Handler) Policy() retry.Policy {
	return h.policy
}

// Handle decodes a Request, runs one attempt and encodes the Result.
func (h *Handler) Handle(ctx context.Context, payload []byte, attempt int) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, retry.Fail(fmt.Errorf("decode answer payload: %w", err))
	}
	res, err := h.job.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// DedupKey returns "" since answer jobs are never deduplicated.
func (h *Handler) DedupKey(payload []byte) string {
	return ""
}
