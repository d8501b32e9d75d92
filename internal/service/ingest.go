package service

import (
	"context"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// ObjectStoreWriter stores and removes raw document bytes.
type ObjectStoreWriter interface {
	PutObject(ctx context.Context, key string, contentType string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
}

// UploadInput represents a direct file upload into a project.
type UploadInput struct {
	OwnerID     string
	ProjectID   string
	Filename    string
	ContentType string
	Content     []byte
}

// IngestService accepts uploaded files, stores their bytes, and queues them
// for indexing.
type IngestService struct {
	docRepo     DocumentRepositoryInterface
	jobRepo     IndexJobRepositoryInterface
	projectRepo ProjectRepositoryInterface
	store       ObjectStoreWriter
	extractor   TextExtractor
	uuidGen     UUIDGenerator
}

func NewIngestService(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreWriter,
	extractor TextExtractor,
) *IngestService {
	return &IngestService{
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		store:       store,
		extractor:   extractor,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewIngestServiceWithUUIDGen creates an IngestService with a custom UUID
// generator (for testing).
func NewIngestServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreWriter,
	extractor TextExtractor,
	uuidGen UUIDGenerator,
) *IngestService {
	s := NewIngestService(docRepo, jobRepo, projectRepo, store, extractor)
	s.uuidGen = uuidGen
	return s
}

// Upload validates the file, stores its bytes, and creates a pending
// document with a queued index job.
func (s *IngestService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Upload", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		ProjectID: input.ProjectID,
		Operation: "upload",
	})
	defer span.End()

	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "filename is required")
	}
	if len(input.Content) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "file content is empty")
	}
	if !s.extractor.Supported(input.ContentType, input.Filename) {
		return nil, domain.ErrUnsupportedFileType
	}

	project, err := s.projectRepo.GetByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != input.OwnerID {
		return nil, domain.ErrNotOwner
	}

	now := time.Now().UTC()
	docID := s.uuidGen.NewString()
	doc := domain.NewDocument(
		docID, input.ProjectID, input.OwnerID,
		domain.SourceTypeUpload,
		ObjectKey(&domain.Document{ID: docID, ProjectID: input.ProjectID, OwnerID: input.OwnerID}),
		input.Filename,
		int64(len(input.Content)),
		input.ContentType,
		now,
	)

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidArgument, "invalid document", err)
	}

	if err := s.store.PutObject(ctx, ObjectKey(doc), input.ContentType, input.Content); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document content", err)
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), doc.ID, now)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return doc, nil
}
