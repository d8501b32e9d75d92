package service

import (
	"context"
	"errors"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

type ListDocumentsInput struct {
	OwnerID   string
	ProjectID string
	Cursor    string
	Limit     int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// DocumentStatus pairs a document with its latest index job.
type DocumentStatus struct {
	Document  *domain.Document
	LatestJob *domain.IndexJob
}

// ObjectStoreSigner is an object store that can also issue time-limited
// download URLs for stored objects.
type ObjectStoreSigner interface {
	ObjectStoreWriter
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// DocumentService handles document lookups, index requests, downloads, and
// deletion.
type DocumentService struct {
	docRepo     DocumentRepositoryInterface
	jobRepo     IndexJobRepositoryInterface
	projectRepo ProjectRepositoryInterface
	store       ObjectStoreSigner
	uuidGen     UUIDGenerator
}

func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreSigner,
) *DocumentService {
	return &DocumentService{
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		store:       store,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID
// generator (for testing).
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreSigner,
	uuidGen UUIDGenerator,
) *DocumentService {
	s := NewDocumentService(docRepo, jobRepo, projectRepo, store)
	s.uuidGen = uuidGen
	return s
}

// Get returns a document after verifying the caller owns it.
func (s *DocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}
	return doc, nil
}

// Status returns a document and its latest index job.
func (s *DocumentService) Status(ctx context.Context, ownerID, documentID string) (*DocumentStatus, error) {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetLatestByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		// A document can exist without jobs (e.g. bootstrap imports).
		job = nil
	}

	return &DocumentStatus{Document: doc, LatestJob: job}, nil
}

func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		ProjectID: input.ProjectID,
		Operation: "list",
	})
	defer span.End()

	project, err := s.projectRepo.GetByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != input.OwnerID {
		return nil, domain.ErrNotOwner
	}

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.docRepo.ListByProjectWithCursor(ctx, input.ProjectID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// DownloadURL issues a time-limited link to the document's stored bytes.
func (s *DocumentService) DownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}
	return s.store.GenerateDownloadURL(ctx, ObjectKey(doc))
}

// RequestIndex queues a new index job for a document. A document already
// being indexed returns domain.ErrAlreadyIndexing.
func (s *DocumentService) RequestIndex(ctx context.Context, ownerID, documentID string) (*domain.IndexJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.RequestIndex", telemetry.SpanAttributes{
		UserID:     ownerID,
		DocumentID: documentID,
		Operation:  "request_index",
	})
	defer span.End()

	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	if doc.Status == domain.DocumentStatusProcessing {
		return nil, domain.ErrAlreadyIndexing
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), doc.ID, time.Now().UTC())
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// Delete removes a document, its stored bytes, and (via cascade) its chunks.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		UserID:     ownerID,
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		return err
	}

	// Best effort: an orphaned object is harmless and re-deletable.
	if err := s.store.DeleteObject(ctx, ObjectKey(doc)); err != nil {
		telemetry.CaptureError(ctx, err)
	}

	return nil
}
