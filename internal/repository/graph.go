package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GraphRepository struct {
	db dbtx
}

func NewGraphRepository(pool *pgxpool.Pool) *GraphRepository {
	return &GraphRepository{db: pool}
}

// Upsert replaces the knowledge graph stored for g.SourceID.
func (r *GraphRepository) Upsert(ctx context.Context, g *domain.StoredGraph) error {
	payload, err := json.Marshal(g.Graph)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_graphs (source_id, graph, fallback, chunk_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_id) DO UPDATE
		 SET graph = EXCLUDED.graph,
		     fallback = EXCLUDED.fallback,
		     chunk_count = EXCLUDED.chunk_count,
		     created_at = EXCLUDED.created_at`,
		g.SourceID, payload, g.Fallback, g.ChunkCount, g.CreatedAt,
	)
	return err
}

func (r *GraphRepository) GetBySource(ctx context.Context, sourceID string) (*domain.StoredGraph, error) {
	var g domain.StoredGraph
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT source_id, graph, fallback, chunk_count, created_at FROM knowledge_graphs WHERE source_id = $1`,
		sourceID,
	).Scan(&g.SourceID, &payload, &g.Fallback, &g.ChunkCount, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGraphNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &g.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &g, nil
}
