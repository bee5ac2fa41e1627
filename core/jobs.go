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


package core

import "time"

// JobKind names the work a job performs.
type JobKind string

const (
	JobKindAnswer    JobKind = "ai_answer"
	JobKindIngestion JobKind = "document_ingestion"
)

// JobState is the externally visible lifecycle of a queued job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	// JobDropped marks a job whose target entity disappeared. It is terminal
	// but not an error.
	JobDropped JobState = "dropped"
)

// Terminal reports whether the job will not run again.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobDropped
}

// Job is a queued unit of work. Payload and Result are JSON documents
// carrying IDs and scalars only.
type Job struct {
	Id          string
	Kind        JobKind
	Payload     []byte
	State       JobState
	Attempt     int
	MaxAttempts int
	LastError   string
	Result      []byte
	DedupKey    string // Non-empty keys allow one active job at a time
	EnqueuedAt  time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}
