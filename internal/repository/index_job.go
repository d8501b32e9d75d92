package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

var ErrIndexJobNotFound = errors.New("index job not found")

type IndexJobRepository struct {
	db dbtx
}

func NewIndexJobRepository(pool *pgxpool.Pool) *IndexJobRepository {
	return &IndexJobRepository{db: pool}
}

func NewIndexJobRepositoryWithTx(tx pgx.Tx) *IndexJobRepository {
	return &IndexJobRepository{db: tx}
}

func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_jobs (id, document_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DocumentID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	var job domain.IndexJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, status, retries, error, created_at, processed_at
		 FROM index_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIndexJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// GetLatestByDocument returns the most recent job for a document, used by
// the status endpoint.
func (r *IndexJobRepository) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IndexJob, error) {
	var job domain.IndexJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, status, retries, error, created_at, processed_at
		 FROM index_jobs WHERE document_id = $1 ORDER BY created_at DESC LIMIT 1`,
		documentID,
	).Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIndexJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// ClaimPending atomically claims up to limit pending jobs for processing.
// SKIP LOCKED keeps concurrent workers from claiming the same job.
func (r *IndexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM index_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE index_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE index_jobs.id = cte.id
		 RETURNING index_jobs.id, index_jobs.document_id, index_jobs.status,
		           index_jobs.retries, index_jobs.error, index_jobs.created_at, index_jobs.processed_at`,
		domain.IndexJobStatusPending, limit, domain.IndexJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IndexJob
	for rows.Next() {
		var job domain.IndexJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *IndexJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IndexJobStatusCompleted || status == domain.IndexJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func (r *IndexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

// RequeueForRetry puts a transiently failed job back in the pending queue.
func (r *IndexJobRepository) RequeueForRetry(ctx context.Context, id string, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET status = $1, retries = retries + 1, error = $2, processed_at = NULL WHERE id = $3`,
		domain.IndexJobStatusPending, nullableString(errMsg), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}
