package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/service"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, project_id, owner_id, source_type, source_ref, source_revision,
	 filename, size_bytes, content_type, status, chunk_count, embedding_model, error_detail, created_at, completed_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, project_id, owner_id, source_type, source_ref, source_revision,
			 filename, size_bytes, content_type, status, chunk_count, embedding_model, error_detail, created_at, completed_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		doc.ID, doc.ProjectID, doc.OwnerID, doc.SourceType, doc.SourceRef, nullableString(doc.SourceRevision),
		doc.Filename, doc.SizeBytes, doc.ContentType, doc.Status, doc.ChunkCount,
		nullableString(doc.EmbeddingModel), nullableString(doc.ErrorDetail), doc.CreatedAt, doc.CompletedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// GetBySourceRef finds a synced document by its provider-native reference
// within a project. Used by sync to detect already imported files.
func (r *DocumentRepository) GetBySourceRef(ctx context.Context, projectID string, sourceType domain.DocumentSourceType, sourceRef string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = $1 AND source_type = $2 AND source_ref = $3`,
		projectID, sourceType, sourceRef,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+` FROM documents
			 WHERE project_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			projectID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+` FROM documents
			 WHERE project_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			projectID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(docs, limit,
			func(d *domain.Document) string { return d.ID },
			func(d *domain.Document) time.Time { return d.CreatedAt })
	}

	return &service.DocumentPageResult{
		Items:      docs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ClaimForIndexing transitions a document to processing unless another
// indexing run already holds it. Returns domain.ErrAlreadyIndexing when the
// document exists but is currently processing.
func (r *DocumentRepository) ClaimForIndexing(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, error_detail = NULL, completed_at = NULL
		 WHERE id = $2 AND status <> $1`,
		domain.DocumentStatusProcessing, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		// Either missing or already processing. One more lookup decides which.
		var status domain.DocumentStatus
		err := r.db.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrDocumentNotFound
			}
			return err
		}
		return domain.ErrAlreadyIndexing
	}
	return nil
}

// MarkCompleted records a successful indexing run.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount int, embeddingModel string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, chunk_count = $2, embedding_model = $3, error_detail = NULL, completed_at = $4
		 WHERE id = $5`,
		domain.DocumentStatusCompleted, chunkCount, embeddingModel, now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkFailed records a failed indexing run with the failure detail.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, detail string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_detail = $2 WHERE id = $3`,
		domain.DocumentStatusFailed, nullableString(detail), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateSourceRevision stores the provider revision seen at the last sync.
func (r *DocumentRepository) UpdateSourceRevision(ctx context.Context, id string, revision string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET source_revision = $1 WHERE id = $2`,
		nullableString(revision), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// EmbeddingModels returns the distinct embedding models used by completed
// documents inside the given projects. More than one entry, or an entry that
// differs from the active model, signals a reindex is needed.
func (r *DocumentRepository) EmbeddingModels(ctx context.Context, ownerID string, projectIDs []string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT embedding_model FROM documents
		 WHERE owner_id = $1 AND project_id = ANY($2) AND status = $3 AND embedding_model IS NOT NULL`,
		ownerID, projectIDs, domain.DocumentStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var sourceRevision, embeddingModel, errorDetail pgtype.Text
	err := row.Scan(
		&doc.ID, &doc.ProjectID, &doc.OwnerID, &doc.SourceType, &doc.SourceRef, &sourceRevision,
		&doc.Filename, &doc.SizeBytes, &doc.ContentType, &doc.Status, &doc.ChunkCount,
		&embeddingModel, &errorDetail, &doc.CreatedAt, &doc.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if sourceRevision.Valid {
		doc.SourceRevision = sourceRevision.String
	}
	if embeddingModel.Valid {
		doc.EmbeddingModel = embeddingModel.String
	}
	if errorDetail.Valid {
		doc.ErrorDetail = errorDetail.String
	}
	return &doc, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
