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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTopic indicates a Topic failed validation.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrMissingOwner indicates the OwnerId field is zero.
	ErrMissingOwner = errors.New("owner id is required")

	// ErrMissingTopic indicates the TopicId field is zero.
	ErrMissingTopic = errors.New("topic id is required")

	// ErrEmptyBlobRef indicates a document has no blob reference.
	ErrEmptyBlobRef = errors.New("blob reference cannot be empty")

	// ErrEmptyTopicName indicates the topic Name field is empty.
	ErrEmptyTopicName = errors.New("topic name cannot be empty")

	// ErrInvalidStatus indicates an invalid ProcessingStatus value.
	ErrInvalidStatus = errors.New("invalid processing status")

	// ErrEmptyQuestion indicates a tutoring request with no question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrUnknownJobKind indicates a job kind without a handler.
	ErrUnknownJobKind = errors.New("unknown job kind")
)
