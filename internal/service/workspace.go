package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/vectorindex"
)

// SourceRepositoryInterface persists source texts
type SourceRepositoryInterface interface {
	Upsert(ctx context.Context, s *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context, filter SourceFilter, cursor *pagination.Cursor, limit int) (*SourcePageResult, error)
	AppendContent(ctx context.Context, id, text string, at time.Time) (*domain.Source, error)
	Delete(ctx context.Context, id string) error
}

// SourceFilter narrows a source listing. Zero fields match everything.
type SourceFilter struct {
	Search string
	Kind   domain.SourceKind
}

// SourcePageResult is one page of sources, newest first.
type SourcePageResult struct {
	Items      []*domain.Source
	NextCursor string
	HasMore    bool
}

// SummaryRepositoryInterface persists the latest summary per source
type SummaryRepositoryInterface interface {
	Upsert(ctx context.Context, s *domain.Summary) error
	GetBySource(ctx context.Context, sourceID string) (*domain.Summary, error)
}

// GraphRepositoryInterface persists the latest knowledge graph per source
type GraphRepositoryInterface interface {
	Upsert(ctx context.Context, g *domain.StoredGraph) error
	GetBySource(ctx context.Context, sourceID string) (*domain.StoredGraph, error)
}

// ChatRepositoryInterface appends and pages chat turns
type ChatRepositoryInterface interface {
	Append(ctx context.Context, turn *domain.ChatTurn) error
	ListBySource(ctx context.Context, sourceID string, cursor *pagination.Cursor, limit int) (*ChatPageResult, error)
}

// IndexJobRepositoryInterface enqueues index builds
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	CreateIfNoPending(ctx context.Context, job *domain.IndexJob) (bool, error)
}

// ChatPageResult is one page of chat history, oldest first.
type ChatPageResult struct {
	Items      []*domain.ChatTurn
	NextCursor string
	HasMore    bool
}

// Summarizer produces summaries
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*domain.Summary, error)
}

// GraphExtractor produces knowledge graphs
type GraphExtractor interface {
	Extract(ctx context.Context, text string) (*domain.StoredGraph, error)
}

// QuestionAnswerer answers questions about a source
type QuestionAnswerer interface {
	Answer(ctx context.Context, sourceID, text, question string) (*domain.ChatAnswer, error)
}

// Translator translates source text
type Translator interface {
	Translate(ctx context.Context, text, language string) (string, error)
}

// InsightGenerator reviews source text
type InsightGenerator interface {
	Insights(ctx context.Context, text string) (string, error)
}

// Indexer builds and removes embedding indexes
type Indexer interface {
	Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error)
	Delete(ctx context.Context, sourceID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// WorkspaceDeps wires a WorkspaceService. TxRunner is optional; without it
// the source upsert and index job insert run separately.
type WorkspaceDeps struct {
	Sources     SourceRepositoryInterface
	Summaries   SummaryRepositoryInterface
	Graphs      GraphRepositoryInterface
	Chats       ChatRepositoryInterface
	IndexJobs   IndexJobRepositoryInterface
	TxRunner    TxRunner
	Summarizer  Summarizer
	Extractor   GraphExtractor
	Answerer    QuestionAnswerer
	Translator  Translator
	Insights    InsightGenerator
	Indexer     Indexer
	ChunkConfig ChunkConfig
	UUIDGen     UUIDGenerator
	Logger      *slog.Logger
}

// WorkspaceService resolves source ids to text, runs the analysis pipeline
// and stores its results.
type WorkspaceService struct {
	deps   WorkspaceDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewWorkspaceService creates a new WorkspaceService instance
func NewWorkspaceService(deps WorkspaceDeps) *WorkspaceService {
	if deps.UUIDGen == nil {
		deps.UUIDGen = &DefaultUUIDGenerator{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceService{
		deps:   deps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PutSourceInput is the payload for creating or replacing a source
type PutSourceInput struct {
	ID       string
	Kind     domain.SourceKind
	Title    string
	Content  string
	Language string
}

// PutSourceOutput reports the stored source and whether an index build was queued
type PutSourceOutput struct {
	Source      *domain.Source
	IndexJobID  string
	IndexQueued bool
}

// PutSource creates or replaces a source. The index built from the previous
// content is dropped, and sources too long for direct prompting get an
// index job.
func (s *WorkspaceService) PutSource(ctx context.Context, input PutSourceInput) (*PutSourceOutput, error) {
	now := s.now()
	src := domain.NewSource(strings.TrimSpace(input.ID), input.Kind, input.Title, input.Content, input.Language, now)
	if err := domain.ValidateSource(src); err != nil {
		if !domain.IsValidSourceKind(src.Kind) {
			return nil, domain.ErrInvalidSourceKind
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid source", err)
	}

	out := &PutSourceOutput{Source: src}
	needsIndex := src.HasContent() && !s.deps.ChunkConfig.FitsContext(src.Content)

	var job *domain.IndexJob
	if needsIndex && s.deps.IndexJobs != nil {
		job = domain.NewIndexJob(s.deps.UUIDGen.NewString(), src.ID, now)
	}

	save := func(sources SourceRepositoryInterface, jobs IndexJobRepositoryInterface) error {
		if err := sources.Upsert(ctx, src); err != nil {
			return fmt.Errorf("upsert source: %w", err)
		}
		if job != nil {
			if err := jobs.Create(ctx, job); err != nil {
				return fmt.Errorf("create index job: %w", err)
			}
		}
		return nil
	}

	var err error
	if s.deps.TxRunner != nil {
		err = s.deps.TxRunner.WithTx(ctx, func(repos TxRepositories) error {
			return save(repos.Sources(), repos.IndexJobs())
		})
	} else {
		err = save(s.deps.Sources, s.deps.IndexJobs)
	}
	if err != nil {
		return nil, err
	}

	s.dropIndex(ctx, src.ID)
	if job != nil {
		out.IndexJobID = job.ID
		out.IndexQueued = true
	}

	return out, nil
}

// GetSource returns a stored source
func (s *WorkspaceService) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	return s.deps.Sources.GetByID(ctx, id)
}

// DeleteSource removes a source. Summaries, graphs, chat turns and index
// jobs go with it; the embedding index is removed from its store.
func (s *WorkspaceService) DeleteSource(ctx context.Context, id string) error {
	if err := s.deps.Sources.Delete(ctx, id); err != nil {
		return err
	}
	s.dropIndex(ctx, id)
	return nil
}

// ListSources returns a page of sources, newest first.
func (s *WorkspaceService) ListSources(ctx context.Context, filter SourceFilter, cursor string, limit int) (*SourcePageResult, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	if filter.Kind != "" && !domain.IsValidSourceKind(filter.Kind) {
		return nil, domain.ErrInvalidSourceKind
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.deps.Sources.List(ctx, filter, decoded, pagination.ClampLimit(limit))
}

// DefaultSpeaker labels segments posted without a speaker.
const DefaultSpeaker = "Speaker A"

// AppendSegmentInput is one transcribed utterance of a live meeting
type AppendSegmentInput struct {
	SourceID string
	Speaker  string
	Text     string
}

// AppendSegment adds a "Speaker: text" line to a meeting transcript. The
// previous index is dropped, and once the transcript no longer fits the
// context an index job is queued unless one is already pending.
func (s *WorkspaceService) AppendSegment(ctx context.Context, input AppendSegmentInput) (*PutSourceOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, domain.ErrEmptyInput
	}
	speaker := strings.TrimSpace(input.Speaker)
	if speaker == "" {
		speaker = DefaultSpeaker
	}

	current, err := s.deps.Sources.GetByID(ctx, input.SourceID)
	if err != nil {
		return nil, err
	}
	if current.Kind != domain.SourceKindMeeting {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "segments can only be appended to meetings")
	}

	now := s.now()
	line := speaker + ": " + text
	out := &PutSourceOutput{}

	save := func(sources SourceRepositoryInterface, jobs IndexJobRepositoryInterface) error {
		src, err := sources.AppendContent(ctx, current.ID, line, now)
		if err != nil {
			return err
		}
		out.Source = src
		if s.deps.ChunkConfig.FitsContext(src.Content) || jobs == nil {
			return nil
		}
		job := domain.NewIndexJob(s.deps.UUIDGen.NewString(), src.ID, now)
		created, err := jobs.CreateIfNoPending(ctx, job)
		if err != nil {
			return fmt.Errorf("create index job: %w", err)
		}
		if created {
			out.IndexJobID = job.ID
		}
		out.IndexQueued = true
		return nil
	}

	if s.deps.TxRunner != nil {
		err = s.deps.TxRunner.WithTx(ctx, func(repos TxRepositories) error {
			return save(repos.Sources(), repos.IndexJobs())
		})
	} else {
		err = save(s.deps.Sources, s.deps.IndexJobs)
	}
	if err != nil {
		return nil, err
	}

	s.dropIndex(ctx, current.ID)
	return out, nil
}

// dropIndex removes the stored index for id. Failures are logged; a stale
// index left behind is still rejected on load by its content hash.
func (s *WorkspaceService) dropIndex(ctx context.Context, id string) {
	if s.deps.Indexer == nil {
		return
	}
	if err := s.deps.Indexer.Delete(ctx, id); err != nil {
		s.logger.Warn("index delete failed", "source_id", id, "error", err)
	}
}

// loadSource resolves id to a source with non-blank content.
func (s *WorkspaceService) loadSource(ctx context.Context, id string) (*domain.Source, error) {
	src, err := s.deps.Sources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !src.HasContent() {
		return nil, domain.ErrEmptyInput
	}
	return src, nil
}

// GenerateSummary summarizes a source and stores the result.
func (s *WorkspaceService) GenerateSummary(ctx context.Context, id string) (*domain.Summary, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.deps.Summarizer.Summarize(ctx, src.Content)
	if err != nil {
		return nil, err
	}
	summary.SourceID = src.ID

	if err := s.deps.Summaries.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	return summary, nil
}

// GetSummary returns the stored summary for a source
func (s *WorkspaceService) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	return s.deps.Summaries.GetBySource(ctx, id)
}

// GenerateGraph extracts a knowledge graph for a source and stores it.
func (s *WorkspaceService) GenerateGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}

	graph, err := s.deps.Extractor.Extract(ctx, src.Content)
	if err != nil {
		return nil, err
	}
	graph.SourceID = src.ID

	if err := s.deps.Graphs.Upsert(ctx, graph); err != nil {
		return nil, fmt.Errorf("store knowledge graph: %w", err)
	}
	return graph, nil
}

// GetGraph returns the stored knowledge graph for a source
func (s *WorkspaceService) GetGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	return s.deps.Graphs.GetBySource(ctx, id)
}

// Chat answers a question about a source and appends the turn to its history.
func (s *WorkspaceService) Chat(ctx context.Context, id, question string) (*domain.ChatAnswer, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}

	answer, err := s.deps.Answerer.Answer(ctx, src.ID, src.Content, question)
	if err != nil {
		return nil, err
	}
	answer.Suggestions = FollowUps(src.Kind)

	turn := &domain.ChatTurn{
		ID:        s.deps.UUIDGen.NewString(),
		SourceID:  src.ID,
		Question:  strings.TrimSpace(question),
		Answer:    answer.Answer,
		CreatedAt: s.now(),
	}
	if err := s.deps.Chats.Append(ctx, turn); err != nil {
		s.logger.Warn("chat turn not saved", "source_id", src.ID, "error", err)
	}

	return answer, nil
}

// History returns a page of chat turns for a source, oldest first.
func (s *WorkspaceService) History(ctx context.Context, id, cursor string, limit int) (*ChatPageResult, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	if _, err := s.deps.Sources.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.deps.Chats.ListBySource(ctx, id, decoded, pagination.ClampLimit(limit))
}

// Suggestions returns starter questions for a source
func (s *WorkspaceService) Suggestions(ctx context.Context, id string) ([]string, error) {
	src, err := s.deps.Sources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Suggestions(src.Kind), nil
}

// BuildIndex builds the embedding index for a source now.
func (s *WorkspaceService) BuildIndex(ctx context.Context, id string) (*vectorindex.Index, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.deps.Indexer.Build(ctx, src.ID, src.Content)
}

// Translate translates a source into language.
func (s *WorkspaceService) Translate(ctx context.Context, id, language string) (string, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return "", err
	}
	return s.deps.Translator.Translate(ctx, src.Content, language)
}

// Insights reviews a source.
func (s *WorkspaceService) Insights(ctx context.Context, id string) (string, error) {
	src, err := s.loadSource(ctx, id)
	if err != nil {
		return "", err
	}
	return s.deps.Insights.Insights(ctx, src.Content)
}
