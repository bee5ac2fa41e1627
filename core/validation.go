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

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document before it is stored.
//
// Validation rules:
//   - OwnerId and TopicId must be set
//   - BlobRef must not be empty
//   - Status must be a known value
//
// NOT validated (populated by ingestion):
//   - ErrorMessage, Stage, ChunkCount
//   - ID (0 is valid from database sequences)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingOwner)
	}
	if doc.TopicId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingTopic)
	}
	if strings.TrimSpace(doc.BlobRef) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyBlobRef)
	}
	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateTopic validates a Topic.
func ValidateTopic(topic *Topic) error {
	if topic == nil {
		return fmt.Errorf("%w: topic is nil", ErrInvalidTopic)
	}
	if topic.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, ErrMissingOwner)
	}
	if strings.TrimSpace(topic.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, ErrEmptyTopicName)
	}
	return nil
}

// ValidateStatus validates that a ProcessingStatus has a valid value.
func ValidateStatus(status ProcessingStatus) error {
	if status < StatusPending || status > StatusFailed {
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
	return nil
}

// CanTransition reports whether a document may move from one status to another.
// Status only moves forward; failed is reachable from any non-terminal status,
// and a manual re-drive may reset completed or failed documents to pending.
func CanTransition(from, to ProcessingStatus, redrive bool) bool {
	if redrive {
		return to == StatusPending
	}
	switch to {
	case StatusProcessing:
		return from == StatusPending || from == StatusProcessing
	case StatusCompleted:
		return from == StatusProcessing
	case StatusFailed:
		return !from.Terminal()
	default:
		return false
	}
}

// TruncateMessage shortens s to at most limit runes.
func TruncateMessage(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
