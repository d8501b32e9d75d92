package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/service"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, owner_id, name, description, market, location, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		project.ID, project.OwnerID, project.Name, project.Description, project.Market,
		project.Location, project.Status, project.Metadata, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, description, market, location, status, metadata, created_at, updated_at
		 FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Market, &p.Location, &p.Status, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetOwnedByIDs returns the projects among ids that are owned by ownerID.
// Callers compare the result length against len(ids) to detect scope
// violations or missing projects.
func (r *ProjectRepository) GetOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.Project, error) {
	if len(ids) == 0 {
		return []*domain.Project{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, description, market, location, status, metadata, created_at, updated_at
		 FROM projects WHERE owner_id = $1 AND id = ANY($2)`,
		ownerID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectRows(rows)
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, description, market, location, status, metadata, created_at, updated_at
		 FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectRows(rows)
}

func (r *ProjectRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*service.ProjectPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, owner_id, name, description, market, location, status, metadata, created_at, updated_at
			 FROM projects
			 WHERE owner_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			ownerID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, owner_id, name, description, market, location, status, metadata, created_at, updated_at
			 FROM projects
			 WHERE owner_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			ownerID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects, err := scanProjectRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(projects) > limit
	if hasMore {
		projects = projects[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(projects, limit,
			func(p *domain.Project) string { return p.ID },
			func(p *domain.Project) time.Time { return p.CreatedAt })
	}

	return &service.ProjectPageResult{
		Items:      projects,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2, market = $3, location = $4, status = $5, metadata = $6, updated_at = $7
		 WHERE id = $8`,
		project.Name, project.Description, project.Market, project.Location,
		project.Status, project.Metadata, project.UpdatedAt, project.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func scanProjectRows(rows pgx.Rows) ([]*domain.Project, error) {
	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Market, &p.Location, &p.Status, &p.Metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}
