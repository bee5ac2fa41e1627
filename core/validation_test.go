package core

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     &Document{OwnerId: 1, TopicId: 2, BlobRef: "notes.pdf", Status: StatusPending},
			wantErr: nil,
		},
		{
			name:    "valid document with ID 0",
			doc:     &Document{Id: 0, OwnerId: 1, TopicId: 2, BlobRef: "notes.pdf", Status: StatusPending},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "missing owner",
			doc:     &Document{TopicId: 2, BlobRef: "notes.pdf", Status: StatusPending},
			wantErr: ErrMissingOwner,
		},
		{
			name:    "missing topic",
			doc:     &Document{OwnerId: 1, BlobRef: "notes.pdf", Status: StatusPending},
			wantErr: ErrMissingTopic,
		},
		{
			name:    "blank blob ref",
			doc:     &Document{OwnerId: 1, TopicId: 2, BlobRef: "  ", Status: StatusPending},
			wantErr: ErrEmptyBlobRef,
		},
		{
			name:    "invalid status",
			doc:     &Document{OwnerId: 1, TopicId: 2, BlobRef: "notes.pdf"},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTopic(t *testing.T) {
	if err := ValidateTopic(&Topic{OwnerId: 1, Name: "Algebra"}); err != nil {
		t.Errorf("ValidateTopic() unexpected error = %v", err)
	}
	if err := ValidateTopic(&Topic{Name: "Algebra"}); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("ValidateTopic() error = %v, want %v", err, ErrMissingOwner)
	}
	if err := ValidateTopic(&Topic{OwnerId: 1}); !errors.Is(err, ErrEmptyTopicName) {
		t.Errorf("ValidateTopic() error = %v, want %v", err, ErrEmptyTopicName)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ProcessingStatus
		redrive  bool
		want     bool
	}{
		{StatusPending, StatusProcessing, false, true},
		{StatusProcessing, StatusProcessing, false, true},
		{StatusProcessing, StatusCompleted, false, true},
		{StatusPending, StatusFailed, false, true},
		{StatusProcessing, StatusFailed, false, true},
		{StatusCompleted, StatusProcessing, false, false},
		{StatusFailed, StatusProcessing, false, false},
		{StatusCompleted, StatusFailed, false, false},
		{StatusPending, StatusCompleted, false, false},
		{StatusFailed, StatusPending, true, true},
		{StatusCompleted, StatusPending, true, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to, tt.redrive); got != tt.want {
			t.Errorf("CanTransition(%s, %s, %v) = %v, want %v", tt.from, tt.to, tt.redrive, got, tt.want)
		}
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := TruncateMessage("short", 10); got != "short" {
		t.Errorf("TruncateMessage() = %q", got)
	}
	if got := TruncateMessage("abcdef", 3); got != "abc" {
		t.Errorf("TruncateMessage() = %q", got)
	}
	// Multi-byte runes are never split.
	if got := TruncateMessage("żółw", 2); got != "żó" {
		t.Errorf("TruncateMessage() = %q", got)
	}
	if got := TruncateMessage("x", 0); got != "" {
		t.Errorf("TruncateMessage() = %q", got)
	}
}
