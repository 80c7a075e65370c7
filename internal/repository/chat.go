package repository

import (
	"context"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	db dbtx
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: pool}
}

func (r *ChatRepository) Append(ctx context.Context, turn *domain.ChatTurn) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_turns (id, source_id, question, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		turn.ID, turn.SourceID, turn.Question, turn.Answer, turn.CreatedAt,
	)
	return err
}

// ListBySource pages a source's chat history oldest first.
func (r *ChatRepository) ListBySource(ctx context.Context, sourceID string, cursor *pagination.Cursor, limit int) (*service.ChatPageResult, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, source_id, question, answer, created_at
			 FROM chat_turns
			 WHERE source_id = $1 AND (created_at, id) > ($2, $3)
			 ORDER BY created_at ASC, id ASC
			 LIMIT $4`,
			sourceID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, source_id, question, answer, created_at
			 FROM chat_turns
			 WHERE source_id = $1
			 ORDER BY created_at ASC, id ASC
			 LIMIT $2`,
			sourceID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.ChatTurn, 0, limit+1)
	for rows.Next() {
		var t domain.ChatTurn
		if err := rows.Scan(&t.ID, &t.SourceID, &t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, func(t *domain.ChatTurn) (string, time.Time) {
		return t.ID, t.CreatedAt
	})

	return &service.ChatPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
