package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"golang.org/x/sync/singleflight"
)

// Embedder produces embedding vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexStore persists one embedding index per source id. Load and Delete
// return domain.ErrIndexNotFound when nothing is stored.
type IndexStore interface {
	Save(ctx context.Context, idx *vectorindex.Index) error
	Load(ctx context.Context, sourceID string) (*vectorindex.Index, error)
	Delete(ctx context.Context, sourceID string) error
}

// DefaultIndexBuildTimeout bounds a shared index build once it no longer
// follows the requests waiting on it.
const DefaultIndexBuildTimeout = 10 * time.Minute

// IndexService builds, loads and queries per-source embedding indexes
type IndexService struct {
	embedder     Embedder
	store        IndexStore
	chunkCfg     ChunkConfig
	model        string
	logger       *slog.Logger
	builds       singleflight.Group
	buildTimeout time.Duration
	now          func() time.Time
}

// NewIndexService creates a new IndexService instance
func NewIndexService(embedder Embedder, store IndexStore, chunkCfg ChunkConfig, model string, logger *slog.Logger) *IndexService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexService{
		embedder:     embedder,
		store:        store,
		chunkCfg:     chunkCfg,
		model:        model,
		logger:       logger,
		buildTimeout: DefaultIndexBuildTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Build chunks text, embeds every chunk in order and replaces the stored
// index for sourceID. Concurrent builds of the same text share one run,
// which keeps going when a caller gives up; each caller stops waiting when
// its own ctx is done.
func (s *IndexService) Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	hash := vectorindex.HashContent(text)
	ch := s.builds.DoChan(sourceID+"/"+hash, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		return s.build(buildCtx, sourceID, text, hash)
	})

	select {
	case <-ctx.Done():
		return nil, domain.NewIndexBuildError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("index build shared", "source_id", sourceID)
		}
		return res.Val.(*vectorindex.Index), nil
	}
}

func (s *IndexService) build(ctx context.Context, sourceID, text, hash string) (*vectorindex.Index, error) {
	ctx, span := telemetry.StartSpan(ctx, "index.build", telemetry.SpanAttributes{
		SourceID:  sourceID,
		Operation: "build",
	})
	defer span.End()

	chunks := SplitText(text, s.chunkCfg)
	span.SetChunkCount(len(chunks))

	idx := vectorindex.New(sourceID, s.model, s.now())
	idx.ContentHash = hash
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewIndexBuildError(fmt.Errorf("embed chunk %d: %w", c.Index, err))
		}
		idx.Add(c.Text, vec)
	}

	if err := s.store.Save(ctx, idx); err != nil {
		span.SetError(err)
		return nil, domain.NewIndexBuildError(fmt.Errorf("save index: %w", err))
	}

	s.logger.Info("index built", "source_id", sourceID, "chunks", idx.Len(), "dimension", idx.Dimension())
	return idx, nil
}

// Load returns the stored index for sourceID when it was built from text.
// A missing, empty, unreadable or stale index is reported as absent, never
// as an error.
func (s *IndexService) Load(ctx context.Context, sourceID, text string) (*vectorindex.Index, bool) {
	idx, err := s.store.Load(ctx, sourceID)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexNotFound) {
			s.logger.Warn("index load failed", "source_id", sourceID, "error", err)
		}
		return nil, false
	}
	if idx == nil || idx.Len() == 0 {
		return nil, false
	}
	if !idx.Covers(text) {
		s.logger.Debug("index stale", "source_id", sourceID)
		return nil, false
	}
	return idx, true
}

// Query embeds question and returns the texts of the k most similar chunks.
func (s *IndexService) Query(ctx context.Context, idx *vectorindex.Index, question string, k int) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "index.query", telemetry.SpanAttributes{
		SourceID:  idx.SourceID,
		Operation: "query",
	})
	defer span.End()

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results, err := idx.Search(vec, k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return vectorindex.Texts(results), nil
}

// Delete removes the stored index for sourceID if there is one.
func (s *IndexService) Delete(ctx context.Context, sourceID string) error {
	if err := s.store.Delete(ctx, sourceID); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}
