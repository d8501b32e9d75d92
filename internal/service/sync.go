package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/sources"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// FolderSource lists and downloads files from a cloud folder.
type FolderSource interface {
	Type() domain.DocumentSourceType
	ListFolder(ctx context.Context, folder string) ([]sources.File, error)
	Download(ctx context.Context, ref string) ([]byte, error)
}

// SyncInput identifies the cloud folder to import into a project.
type SyncInput struct {
	OwnerID    string
	ProjectID  string
	SourceType domain.DocumentSourceType
	Folder     string
}

// SyncResult summarizes one folder sync.
type SyncResult struct {
	Created   int
	Updated   int
	Skipped   int
	Documents []*domain.Document
}

// SyncService imports documents from connected cloud folders. Files already
// imported at the same revision are skipped; changed files are re-fetched
// and queued for reindexing.
type SyncService struct {
	docRepo     DocumentRepositoryInterface
	jobRepo     IndexJobRepositoryInterface
	projectRepo ProjectRepositoryInterface
	store       ObjectStoreWriter
	extractor   TextExtractor
	srcs        map[domain.DocumentSourceType]FolderSource
	uuidGen     UUIDGenerator
}

func NewSyncService(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreWriter,
	extractor TextExtractor,
	srcs []FolderSource,
) *SyncService {
	byType := make(map[domain.DocumentSourceType]FolderSource, len(srcs))
	for _, src := range srcs {
		byType[src.Type()] = src
	}
	return &SyncService{
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		store:       store,
		extractor:   extractor,
		srcs:        byType,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewSyncServiceWithUUIDGen creates a SyncService with a custom UUID
// generator (for testing).
func NewSyncServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	jobRepo IndexJobRepositoryInterface,
	projectRepo ProjectRepositoryInterface,
	store ObjectStoreWriter,
	extractor TextExtractor,
	srcs []FolderSource,
	uuidGen UUIDGenerator,
) *SyncService {
	s := NewSyncService(docRepo, jobRepo, projectRepo, store, extractor, srcs)
	s.uuidGen = uuidGen
	return s
}

// SyncFolder imports the supported files of a cloud folder into a project.
func (s *SyncService) SyncFolder(ctx context.Context, input SyncInput) (*SyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SyncService.SyncFolder", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		ProjectID: input.ProjectID,
		Operation: "sync",
	})
	defer span.End()

	src, ok := s.srcs[input.SourceType]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument,
			fmt.Sprintf("source %q is not configured", input.SourceType))
	}

	project, err := s.projectRepo.GetByID(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != input.OwnerID {
		return nil, domain.ErrNotOwner
	}

	files, err := src.ListFolder(ctx, input.Folder)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, file := range files {
		if !s.extractor.Supported(file.ContentType, file.Name) {
			result.Skipped++
			continue
		}

		existing, err := s.docRepo.GetBySourceRef(ctx, input.ProjectID, input.SourceType, file.Ref)
		switch {
		case err == nil:
			if existing.SourceRevision != "" && existing.SourceRevision == file.Revision {
				result.Skipped++
				continue
			}
			if err := s.refreshDocument(ctx, src, existing, file); err != nil {
				return nil, err
			}
			result.Updated++
			result.Documents = append(result.Documents, existing)
		case errors.Is(err, domain.ErrDocumentNotFound):
			doc, err := s.importFile(ctx, src, input, file)
			if err != nil {
				return nil, err
			}
			result.Created++
			result.Documents = append(result.Documents, doc)
		default:
			return nil, err
		}
	}

	return result, nil
}

func (s *SyncService) importFile(ctx context.Context, src FolderSource, input SyncInput, file sources.File) (*domain.Document, error) {
	content, err := src.Download(ctx, file.Ref)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(
		s.uuidGen.NewString(), input.ProjectID, input.OwnerID,
		input.SourceType, file.Ref, file.Name,
		int64(len(content)), file.ContentType, now,
	)
	doc.SourceRevision = file.Revision

	if err := s.store.PutObject(ctx, ObjectKey(doc), file.ContentType, content); err != nil {
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

func (s *SyncService) refreshDocument(ctx context.Context, src FolderSource, doc *domain.Document, file sources.File) error {
	content, err := src.Download(ctx, file.Ref)
	if err != nil {
		return err
	}

	if err := s.store.PutObject(ctx, ObjectKey(doc), file.ContentType, content); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document content", err)
	}

	if err := s.docRepo.UpdateSourceRevision(ctx, doc.ID, file.Revision); err != nil {
		return err
	}
	doc.SourceRevision = file.Revision

	job := domain.NewIndexJob(s.uuidGen.NewString(), doc.ID, time.Now().UTC())
	return s.jobRepo.Create(ctx, job)
}
