package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
)

// ConversationRepository persists the grounding record of each chat turn.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, cc *domain.ConversationContext) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_contexts
			(id, owner_id, conversation_id, query, chunk_ids, response, context_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cc.ID, cc.OwnerID, cc.ConversationID, cc.Query, cc.ChunkIDs, cc.Response, cc.ContextScore, cc.CreatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.ConversationContext, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, conversation_id, query, chunk_ids, response, context_score, created_at
		 FROM conversation_contexts WHERE id = $1`,
		id,
	)
	cc, err := scanConversationContext(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return cc, nil
}

// ListRecent returns the latest turns of a conversation, oldest first, so
// they can be replayed directly as history.
func (r *ConversationRepository) ListRecent(ctx context.Context, ownerID, conversationID string, limit int) ([]*domain.ConversationContext, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, conversation_id, query, chunk_ids, response, context_score, created_at
		 FROM (
			SELECT id, owner_id, conversation_id, query, chunk_ids, response, context_score, created_at
			FROM conversation_contexts
			WHERE owner_id = $1 AND conversation_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		 ) recent
		 ORDER BY created_at ASC`,
		ownerID, conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*domain.ConversationContext
	for rows.Next() {
		cc, err := scanConversationContext(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, cc)
	}
	return turns, rows.Err()
}

func (r *ConversationRepository) DeleteByConversation(ctx context.Context, ownerID, conversationID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_contexts WHERE owner_id = $1 AND conversation_id = $2`,
		ownerID, conversationID,
	)
	return err
}

func scanConversationContext(row pgx.Row) (*domain.ConversationContext, error) {
	var cc domain.ConversationContext
	var response pgtype.Text
	err := row.Scan(&cc.ID, &cc.OwnerID, &cc.ConversationID, &cc.Query, &cc.ChunkIDs, &response, &cc.ContextScore, &cc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if response.Valid {
		cc.Response = response.String
	}
	return &cc, nil
}
