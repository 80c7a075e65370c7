package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sourceColumns = `id, kind, title, content, language, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

// Upsert inserts a source or replaces its content. The original created_at
// is kept and written back into s.
func (r *SourceRepository) Upsert(ctx context.Context, s *domain.Source) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO sources (id, kind, title, content, language, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET kind = EXCLUDED.kind,
		     title = EXCLUDED.title,
		     content = EXCLUDED.content,
		     language = EXCLUDED.language,
		     updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		s.ID, s.Kind, s.Title, s.Content, s.Language, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.CreatedAt)
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	s, err := scanSource(r.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return s, nil
}

// List pages sources newest first. A non-empty Search keeps sources whose
// title or content contains it, ignoring case.
func (r *SourceRepository) List(ctx context.Context, filter service.SourceFilter, cursor *pagination.Cursor, limit int) (*service.SourcePageResult, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	pattern := ""
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern = "%" + likeEscaper.Replace(search) + "%"
	}
	var cursorTS *time.Time
	var cursorID string
	if cursor != nil {
		cursorTS = &cursor.Timestamp
		cursorID = cursor.LastID
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources
		 WHERE ($1 = '' OR title ILIKE $1 OR content ILIKE $1)
		   AND ($2 = '' OR kind = $2)
		   AND ($3::timestamptz IS NULL OR (created_at, id) < ($3, $4))
		 ORDER BY created_at DESC, id DESC
		 LIMIT $5`,
		pattern, string(filter.Kind), cursorTS, cursorID, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.Source, 0, limit+1)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, func(s *domain.Source) (string, time.Time) {
		return s.ID, s.CreatedAt
	})

	return &service.SourcePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// AppendContent adds text as a new line at the end of a source's content
// and returns the updated source.
func (r *SourceRepository) AppendContent(ctx context.Context, id, text string, at time.Time) (*domain.Source, error) {
	s, err := scanSource(r.db.QueryRow(ctx,
		`UPDATE sources
		 SET content = CASE WHEN content = '' THEN $2 ELSE content || E'\n' || $2 END,
		     updated_at = $3
		 WHERE id = $1
		 RETURNING `+sourceColumns,
		id, text, at,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetText returns the content stored under id.
func (r *SourceRepository) GetText(ctx context.Context, id string) (string, error) {
	var content string
	err := r.db.QueryRow(ctx, `SELECT content FROM sources WHERE id = $1`, id).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrSourceNotFound
		}
		return "", err
	}
	return content, nil
}

// Delete removes a source. Summaries, graphs, chat turns, index chunks and
// index jobs are removed by cascade.
func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var s domain.Source
	if err := row.Scan(&s.ID, &s.Kind, &s.Title, &s.Content, &s.Language, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
