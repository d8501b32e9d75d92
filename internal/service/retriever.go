package service

import (
	"context"
	"strings"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SearchScope restricts retrieval to projects owned by a single user.
type SearchScope struct {
	OwnerID    string
	ProjectIDs []string
}

// RetrievedChunk is a chunk returned from vector search with its
// similarity score.
type RetrievedChunk struct {
	Chunk            *domain.Chunk
	DocumentFilename string
	Score            float32
}

// ChunkSearchRepository defines the repository interface for vector search.
type ChunkSearchRepository interface {
	Search(ctx context.Context, embedding []float32, scope SearchScope, threshold float32, limit int) ([]*RetrievedChunk, error)
}

// ProjectScopeRepository verifies project ownership before search.
type ProjectScopeRepository interface {
	GetOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.Project, error)
}

// IndexedModelRepository reports the embedding models present in the index.
type IndexedModelRepository interface {
	EmbeddingModels(ctx context.Context, ownerID string, projectIDs []string) ([]string, error)
}

// RetrieveInput represents input for a retrieval query.
type RetrieveInput struct {
	OwnerID    string
	Query      string
	ProjectIDs []string
	Limit      int
	Threshold  float32
}

// RetrieverService embeds a query and finds the most similar chunks inside
// the caller's project scope.
type RetrieverService struct {
	chunkRepo      ChunkSearchRepository
	projectRepo    ProjectScopeRepository
	documentRepo   IndexedModelRepository
	embedding      EmbeddingClient
	embeddingModel string
}

func NewRetrieverService(
	chunkRepo ChunkSearchRepository,
	projectRepo ProjectScopeRepository,
	documentRepo IndexedModelRepository,
	embedding EmbeddingClient,
	embeddingModel string,
) *RetrieverService {
	return &RetrieverService{
		chunkRepo:      chunkRepo,
		projectRepo:    projectRepo,
		documentRepo:   documentRepo,
		embedding:      embedding,
		embeddingModel: embeddingModel,
	}
}

// Retrieve finds the chunks most similar to the query. An empty project
// scope returns no results rather than searching everything: the scope is a
// security boundary and absence of scope fails closed.
func (s *RetrieverService) Retrieve(ctx context.Context, input RetrieveInput) ([]*RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrieverService.Retrieve", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if input.Limit <= 0 {
		return nil, domain.ErrInvalidResultLimit
	}

	scope := dedupeScope(input.ProjectIDs)
	if len(scope) == 0 {
		return []*RetrievedChunk{}, nil
	}

	owned, err := s.projectRepo.GetOwnedByIDs(ctx, input.OwnerID, scope)
	if err != nil {
		return nil, err
	}
	if len(owned) != len(scope) {
		return nil, domain.ErrScopeForbidden
	}

	models, err := s.documentRepo.EmbeddingModels(ctx, input.OwnerID, scope)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m != s.embeddingModel {
			return nil, domain.ErrEmbeddingMismatch
		}
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	return s.chunkRepo.Search(ctx, embedding, SearchScope{
		OwnerID:    input.OwnerID,
		ProjectIDs: scope,
	}, input.Threshold, input.Limit)
}

func dedupeScope(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
