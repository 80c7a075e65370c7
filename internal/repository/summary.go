package repository

import (
	"context"
	"errors"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SummaryRepository struct {
	db dbtx
}

func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{db: pool}
}

// Upsert replaces the summary stored for s.SourceID.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.Summary) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO summaries (source_id, content, chunk_count, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source_id) DO UPDATE
		 SET content = EXCLUDED.content,
		     chunk_count = EXCLUDED.chunk_count,
		     created_at = EXCLUDED.created_at`,
		s.SourceID, s.Content, s.ChunkCount, s.CreatedAt,
	)
	return err
}

func (r *SummaryRepository) GetBySource(ctx context.Context, sourceID string) (*domain.Summary, error) {
	var s domain.Summary
	err := r.db.QueryRow(ctx,
		`SELECT source_id, content, chunk_count, created_at FROM summaries WHERE source_id = $1`,
		sourceID,
	).Scan(&s.SourceID, &s.Content, &s.ChunkCount, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, err
	}
	return &s, nil
}
