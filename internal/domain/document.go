package domain

import (
	"fmt"
	"time"
)

// DocumentSourceType identifies where a document's bytes came from.
type DocumentSourceType string

const (
	SourceTypeUpload      DocumentSourceType = "upload"
	SourceTypeGoogleDrive DocumentSourceType = "google_drive"
	SourceTypeDropbox     DocumentSourceType = "dropbox"
)

// DocumentStatus represents the indexing lifecycle of a document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents one source file attached to a project.
// ChunkCount is authoritative only while Status is completed.
type Document struct {
	ID             string
	ProjectID      string
	OwnerID        string
	SourceType     DocumentSourceType
	SourceRef      string // provider-native id for synced files, object key for uploads
	SourceRevision string // provider revision or checksum, used to skip unchanged files on sync
	Filename       string
	SizeBytes      int64
	ContentType    string
	Status         DocumentStatus
	ChunkCount     int
	EmbeddingModel string // model the chunks were embedded with, set on completion
	ErrorDetail    string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// NewDocument creates a pending Document awaiting indexing.
func NewDocument(
	id, projectID, ownerID string,
	sourceType DocumentSourceType,
	sourceRef, filename string,
	sizeBytes int64,
	contentType string,
	createdAt time.Time,
) *Document {
	return &Document{
		ID:          id,
		ProjectID:   projectID,
		OwnerID:     ownerID,
		SourceType:  sourceType,
		SourceRef:   sourceRef,
		Filename:    filename,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		Status:      DocumentStatusPending,
		CreatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.ProjectID == "" {
		return fmt.Errorf("document ProjectID is required")
	}

	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if !isValidSourceType(d.SourceType) {
		return fmt.Errorf("document SourceType is invalid: %s", d.SourceType)
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

func isValidSourceType(t DocumentSourceType) bool {
	switch t {
	case SourceTypeUpload, SourceTypeGoogleDrive, SourceTypeDropbox:
		return true
	}
	return false
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}
