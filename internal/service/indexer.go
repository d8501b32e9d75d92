package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// DocumentPageResult is one page of a document listing.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// DocumentRepositoryInterface defines the repository interface for document
// persistence.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetBySourceRef(ctx context.Context, projectID string, sourceType domain.DocumentSourceType, sourceRef string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
	ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	ClaimForIndexing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, chunkCount int, embeddingModel string) error
	MarkFailed(ctx context.Context, id string, detail string) error
	UpdateSourceRevision(ctx context.Context, id string, revision string) error
	Delete(ctx context.Context, id string) error
	EmbeddingModels(ctx context.Context, ownerID string, projectIDs []string) ([]string, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk
// persistence.
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error)
}

// IndexJobRepositoryInterface defines the repository interface for index job
// persistence.
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	GetLatestByDocument(ctx context.Context, documentID string) (*domain.IndexJob, error)
}

// ObjectStore fetches raw document bytes from object storage.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor extracts plain text from raw file bytes.
type TextExtractor interface {
	Extract(content []byte, contentType, filename string) (string, error)
	Supported(contentType, filename string) bool
}

// IndexerService turns a document's raw bytes into embedded chunks.
type IndexerService struct {
	docRepo        DocumentRepositoryInterface
	txRunner       TxRunner
	chunker        *Chunker
	extractor      TextExtractor
	embedding      EmbeddingClient
	store          ObjectStore
	chunkCfg       ChunkConfig
	embeddingModel string
	uuidGen        UUIDGenerator
}

func NewIndexerService(
	docRepo DocumentRepositoryInterface,
	txRunner TxRunner,
	chunker *Chunker,
	extractor TextExtractor,
	embedding EmbeddingClient,
	store ObjectStore,
	chunkCfg ChunkConfig,
	embeddingModel string,
) *IndexerService {
	return &IndexerService{
		docRepo:        docRepo,
		txRunner:       txRunner,
		chunker:        chunker,
		extractor:      extractor,
		embedding:      embedding,
		store:          store,
		chunkCfg:       chunkCfg,
		embeddingModel: embeddingModel,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// ObjectKey is the storage location of a document's raw bytes.
func ObjectKey(doc *domain.Document) string {
	return fmt.Sprintf("%s/%s/%s", doc.OwnerID, doc.ProjectID, doc.ID)
}

// Index runs the full pipeline for one document: claim, extract, chunk,
// embed, and atomically swap in the new chunks. A document already being
// indexed returns domain.ErrAlreadyIndexing. Returns the chunk count.
//
// The final commit runs on a context detached from the caller so a
// cancellation mid-commit cannot strand a half-indexed corpus; readers see
// either the old chunks or the complete new set.
func (s *IndexerService) Index(ctx context.Context, documentID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.Index", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return 0, err
	}

	if err := s.docRepo.ClaimForIndexing(ctx, doc.ID); err != nil {
		return 0, err
	}

	chunks, err := s.buildChunks(ctx, doc)
	if err != nil {
		s.fail(ctx, doc.ID, err)
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		s.fail(ctx, doc.ID, err)
		return 0, err
	}

	// Readers see either the previous chunks or the full new set.
	commitCtx := context.WithoutCancel(ctx)
	err = s.txRunner.WithTx(commitCtx, func(repos TxRepositories) error {
		if err := repos.Chunks().ReplaceChunks(commitCtx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.Documents().MarkCompleted(commitCtx, doc.ID, len(chunks), s.embeddingModel)
	})
	if err != nil {
		s.fail(ctx, doc.ID, err)
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeIndexFailed, "failed to commit chunks", err)
	}

	return len(chunks), nil
}

func (s *IndexerService) buildChunks(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	content, err := s.store.GetObject(ctx, ObjectKey(doc))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndexFailed, "failed to fetch document content", err)
	}

	text, err := s.extractor.Extract(content, doc.ContentType, doc.Filename)
	if err != nil {
		return nil, err
	}

	spans, err := s.chunker.Chunk(text, s.chunkCfg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		embedding, err := s.embedding.GenerateEmbedding(ctx, span.Content)
		if err != nil {
			return nil, err
		}

		chunks = append(chunks, domain.Chunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: doc.ID,
			ProjectID:  doc.ProjectID,
			OwnerID:    doc.OwnerID,
			ChunkIndex: i,
			Content:    span.Content,
			Embedding:  embedding,
			TokenCount: span.TokenCount,
			Metadata: map[string]string{
				"filename":        doc.Filename,
				"embedding_model": s.embeddingModel,
			},
			CreatedAt: now,
		})
	}

	return chunks, nil
}

// fail records the failure on the document. Detached context so the record
// survives caller cancellation.
func (s *IndexerService) fail(ctx context.Context, documentID string, cause error) {
	failCtx := context.WithoutCancel(ctx)
	if err := s.docRepo.MarkFailed(failCtx, documentID, cause.Error()); err != nil {
		telemetry.CaptureError(failCtx, err)
	}
}
