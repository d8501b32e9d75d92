package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/service"
)

// ChunkRepository handles persistence of chunked document embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Run inside a transaction so readers never observe a half-indexed document.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(id, document_id, project_id, owner_id, chunk_index, content, embedding, token_count, metadata, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.DocumentID,
			c.ProjectID,
			c.OwnerID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.TokenCount,
			c.Metadata,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// Search runs cosine similarity search over the caller's project scope.
// Results below threshold are excluded; ties on score break on chunk order
// within the document.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, scope service.SearchScope, threshold float32, limit int) ([]*service.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, c.project_id, c.owner_id, c.chunk_index, c.content, c.token_count, c.metadata, c.created_at,
		        d.filename,
		        1 - (c.embedding <=> $1) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.owner_id = $2 AND c.project_id = ANY($3)
		   AND 1 - (c.embedding <=> $1) >= $4
		 ORDER BY score DESC, c.document_id, c.chunk_index ASC
		 LIMIT $5`,
		vec, scope.OwnerID, scope.ProjectIDs, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.RetrievedChunk, 0)
	for rows.Next() {
		var chunk domain.Chunk
		var result service.RetrievedChunk
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.ProjectID, &chunk.OwnerID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.TokenCount, &chunk.Metadata, &chunk.CreatedAt,
			&result.DocumentFilename, &result.Score,
		); err != nil {
			return nil, err
		}
		result.Chunk = &chunk
		results = append(results, &result)
	}

	return results, rows.Err()
}

// GetByIDs loads chunks by id, used to rehydrate conversation context.
func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return []*domain.Chunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, project_id, owner_id, chunk_index, content, token_count, metadata, created_at
		 FROM chunks WHERE id = ANY($1)
		 ORDER BY document_id, chunk_index ASC`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.OwnerID, &c.ChunkIndex, &c.Content, &c.TokenCount, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}
