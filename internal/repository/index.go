package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// IndexRepository stores embedding indexes as one row per chunk with a
// pgvector column.
type IndexRepository struct {
	pool *pgxpool.Pool
}

func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

// Save replaces every chunk of the source's index in one transaction.
func (r *IndexRepository) Save(ctx context.Context, idx *vectorindex.Index) error {
	createdAt := idx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM source_index_chunks WHERE source_id = $1`, idx.SourceID); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}

		for _, e := range idx.Entries {
			_, err := tx.Exec(ctx,
				`INSERT INTO source_index_chunks (source_id, chunk_index, content, embedding, model, content_hash, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				idx.SourceID, e.Ordinal, e.Text, pgvector.NewVector(e.Vector), idx.Model, idx.ContentHash, createdAt,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", e.Ordinal, err)
			}
		}
		return nil
	})
}

func (r *IndexRepository) Load(ctx context.Context, sourceID string) (*vectorindex.Index, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT chunk_index, content, embedding::text, model, content_hash, created_at
		 FROM source_index_chunks
		 WHERE source_id = $1
		 ORDER BY chunk_index ASC`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idx *vectorindex.Index
	for rows.Next() {
		var e vectorindex.Entry
		var vec pgvector.Vector
		var model, contentHash string
		var createdAt time.Time
		if err := rows.Scan(&e.Ordinal, &e.Text, &vec, &model, &contentHash, &createdAt); err != nil {
			return nil, err
		}
		if idx == nil {
			idx = vectorindex.New(sourceID, model, createdAt)
			idx.ContentHash = contentHash
		}
		e.Vector = vec.Slice()
		idx.Entries = append(idx.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if idx == nil {
		return nil, domain.ErrIndexNotFound
	}
	return idx, nil
}

func (r *IndexRepository) Delete(ctx context.Context, sourceID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM source_index_chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIndexNotFound
	}
	return nil
}
