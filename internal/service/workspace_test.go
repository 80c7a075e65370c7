package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type workspaceMocks struct {
	sources   *MockSourceRepo
	summaries *MockSummaryRepo
	graphs    *MockGraphRepo
	chats     *MockChatRepo
	jobs      *MockIndexJobRepo
	indexer   *MockIndexer
	model     *MockCompleter
}

func newWorkspace(t *testing.T) (*WorkspaceService, *workspaceMocks) {
	t.Helper()

	m := &workspaceMocks{
		sources:   new(MockSourceRepo),
		summaries: new(MockSummaryRepo),
		graphs:    new(MockGraphRepo),
		chats:     new(MockChatRepo),
		jobs:      new(MockIndexJobRepo),
		indexer:   new(MockIndexer),
		model:     new(MockCompleter),
	}
	cfg := ChunkConfig{ContextThreshold: 100, MaxChars: 50, Overlap: 10}

	svc := NewWorkspaceService(WorkspaceDeps{
		Sources:     m.sources,
		Summaries:   m.summaries,
		Graphs:      m.graphs,
		Chats:       m.chats,
		IndexJobs:   m.jobs,
		Summarizer:  NewSummaryService(m.model, cfg, nil, WithSummaryRetries(0, 0)),
		Extractor:   NewGraphService(m.model, cfg, nil),
		Answerer:    NewChatService(m.model, new(MockIndexProvider), cfg, 0, nil),
		Translator:  NewTranslationService(m.model, cfg, nil),
		Insights:    NewInsightService(m.model, cfg, nil),
		Indexer:     m.indexer,
		ChunkConfig: cfg,
		UUIDGen:     &fixedUUID{ids: []string{"id-1", "id-2", "id-3"}},
	})
	svc.now = func() time.Time { return fixedTime }
	return svc, m
}

func meetingSource(content string) *domain.Source {
	return domain.NewSource("mtg-1", domain.SourceKindMeeting, "Weekly sync", content, "en", fixedTime)
}

func TestWorkspaceService_PutSource_Short(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.Source) bool {
		return s.ID == "mtg-1" && s.Kind == domain.SourceKindMeeting && s.CreatedAt.Equal(fixedTime)
	})).Return(nil)
	m.indexer.On("Delete", mock.Anything, "mtg-1").Return(nil)

	out, err := svc.PutSource(context.Background(), PutSourceInput{
		ID:      " mtg-1 ",
		Kind:    domain.SourceKindMeeting,
		Title:   "Weekly sync",
		Content: "Alice: hello",
	})

	require.NoError(t, err)
	assert.False(t, out.IndexQueued)
	assert.Empty(t, out.IndexJobID)
	m.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.indexer.AssertExpectations(t)
}

func TestWorkspaceService_PutSource_LongQueuesIndexJobInTx(t *testing.T) {
	svc, m := newWorkspace(t)
	txSources := new(MockSourceRepo)
	txJobs := new(MockIndexJobRepo)
	runner := &testTxRunner{repos: &testTxRepos{sources: txSources, indexJobs: txJobs}}
	svc.deps.TxRunner = runner

	content := strings.Repeat("Bob: the rollout is on track.\n", 10)
	txSources.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	m.indexer.On("Delete", mock.Anything, "mtg-1").Return(domain.ErrIndexNotFound)
	txJobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
		return j.ID == "id-1" && j.SourceID == "mtg-1" && j.Status == domain.IndexJobStatusPending
	})).Return(nil)

	out, err := svc.PutSource(context.Background(), PutSourceInput{
		ID: "mtg-1", Kind: domain.SourceKindMeeting, Content: content,
	})

	require.NoError(t, err)
	assert.True(t, runner.called)
	assert.True(t, out.IndexQueued)
	assert.Equal(t, "id-1", out.IndexJobID)
	txSources.AssertExpectations(t)
	txJobs.AssertExpectations(t)
	m.sources.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	m.indexer.AssertCalled(t, "Delete", mock.Anything, "mtg-1")
}

func TestWorkspaceService_PutSource_ReplacedLongContentIsNotAnsweredFromOldIndex(t *testing.T) {
	svc, m := newWorkspace(t)
	indexes := NewIndexService(&letterEmbedder{}, newMemIndexStore(), svc.deps.ChunkConfig, "letters", nil)
	svc.deps.Indexer = indexes
	svc.deps.Answerer = NewChatService(m.model, indexes, svc.deps.ChunkConfig, 2, nil)
	ctx := context.Background()

	v1 := strings.Repeat("Alice: the budget is forty thousand.\n", 6)
	v2 := strings.Repeat("Zed: the zebra exhibit opens Friday.\n", 6)
	m.sources.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	m.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.PutSource(ctx, PutSourceInput{ID: "mtg-1", Kind: domain.SourceKindMeeting, Content: v1})
	require.NoError(t, err)
	_, err = indexes.Build(ctx, "mtg-1", v1)
	require.NoError(t, err)

	out, err := svc.PutSource(ctx, PutSourceInput{ID: "mtg-1", Kind: domain.SourceKindMeeting, Content: v2})
	require.NoError(t, err)
	assert.True(t, out.IndexQueued)
	_, ok := indexes.Load(ctx, "mtg-1", v1)
	assert.False(t, ok)

	var prompt string
	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource(v2), nil)
	m.model.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return("The zebra exhibit opens Friday.", nil)
	m.chats.On("Append", mock.Anything, mock.Anything).Return(nil)

	answer, err := svc.Chat(ctx, "mtg-1", "What opens Friday?")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerModeRetrieval, answer.Mode)
	assert.Contains(t, prompt, "zebra")
	assert.NotContains(t, prompt, "budget")
}

func TestWorkspaceService_PutSource_JobFailureFailsRequest(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	m.jobs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := svc.PutSource(context.Background(), PutSourceInput{
		ID: "mtg-1", Kind: domain.SourceKindMeeting, Content: strings.Repeat("x ", 80),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create index job")
}

func TestWorkspaceService_PutSource_Validation(t *testing.T) {
	svc, m := newWorkspace(t)

	_, err := svc.PutSource(context.Background(), PutSourceInput{ID: "a", Kind: "podcast"})
	assert.ErrorIs(t, err, domain.ErrInvalidSourceKind)

	_, err = svc.PutSource(context.Background(), PutSourceInput{ID: "  ", Kind: domain.SourceKindDocument})
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)

	m.sources.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestWorkspaceService_DeleteSource(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("Delete", mock.Anything, "mtg-1").Return(nil)
	m.indexer.On("Delete", mock.Anything, "mtg-1").Return(errors.New("bucket unreachable"))

	require.NoError(t, svc.DeleteSource(context.Background(), "mtg-1"))

	m.sources.On("Delete", mock.Anything, "missing").Return(domain.ErrSourceNotFound)
	err := svc.DeleteSource(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
	m.indexer.AssertNumberOfCalls(t, "Delete", 1)
}

func TestWorkspaceService_ListSources(t *testing.T) {
	svc, m := newWorkspace(t)

	page := &SourcePageResult{Items: []*domain.Source{meetingSource("x")}, NextCursor: "next", HasMore: true}
	m.sources.On("List", mock.Anything, SourceFilter{Search: "budget", Kind: domain.SourceKindMeeting}, (*pagination.Cursor)(nil), pagination.MaxLimit).
		Return(page, nil)

	got, err := svc.ListSources(context.Background(), SourceFilter{Search: "  budget ", Kind: domain.SourceKindMeeting}, "", 500)

	require.NoError(t, err)
	assert.Same(t, page, got)

	_, err = svc.ListSources(context.Background(), SourceFilter{}, "!!!", 10)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)

	_, err = svc.ListSources(context.Background(), SourceFilter{Kind: "podcast"}, "", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidSourceKind)
}

func TestWorkspaceService_AppendSegment_Short(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Alice: hi"), nil)
	m.sources.On("AppendContent", mock.Anything, "mtg-1", "Speaker A: hello there", fixedTime).
		Return(meetingSource("Alice: hi\nSpeaker A: hello there"), nil)
	m.indexer.On("Delete", mock.Anything, "mtg-1").Return(domain.ErrIndexNotFound)

	out, err := svc.AppendSegment(context.Background(), AppendSegmentInput{SourceID: "mtg-1", Text: " hello there "})

	require.NoError(t, err)
	assert.False(t, out.IndexQueued)
	assert.Equal(t, "Alice: hi\nSpeaker A: hello there", out.Source.Content)
	m.jobs.AssertNotCalled(t, "CreateIfNoPending", mock.Anything, mock.Anything)
	m.indexer.AssertExpectations(t)
}

func TestWorkspaceService_AppendSegment_CrossingThresholdQueuesIndexJob(t *testing.T) {
	svc, m := newWorkspace(t)
	long := strings.Repeat("Bob: the rollout is on track.\n", 4)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Bob: start"), nil)
	m.sources.On("AppendContent", mock.Anything, "mtg-1", "Bob: the rollout is on track.", fixedTime).
		Return(meetingSource(long), nil).Once()
	m.jobs.On("CreateIfNoPending", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
		return j.ID == "id-1" && j.SourceID == "mtg-1"
	})).Return(true, nil).Once()
	m.jobs.On("CreateIfNoPending", mock.Anything, mock.Anything).Return(false, nil).Once()
	m.indexer.On("Delete", mock.Anything, "mtg-1").Return(nil)

	first, err := svc.AppendSegment(context.Background(), AppendSegmentInput{SourceID: "mtg-1", Speaker: "Bob", Text: "the rollout is on track."})
	require.NoError(t, err)
	assert.True(t, first.IndexQueued)
	assert.Equal(t, "id-1", first.IndexJobID)

	m.sources.On("AppendContent", mock.Anything, "mtg-1", "Bob: still on track.", fixedTime).
		Return(meetingSource(long+"Bob: still on track."), nil).Once()

	second, err := svc.AppendSegment(context.Background(), AppendSegmentInput{SourceID: "mtg-1", Speaker: "Bob", Text: "still on track."})
	require.NoError(t, err)
	assert.True(t, second.IndexQueued)
	assert.Empty(t, second.IndexJobID)

	m.jobs.AssertExpectations(t)
	m.indexer.AssertNumberOfCalls(t, "Delete", 2)
}

func TestWorkspaceService_AppendSegment_Errors(t *testing.T) {
	svc, m := newWorkspace(t)
	ctx := context.Background()

	_, err := svc.AppendSegment(ctx, AppendSegmentInput{SourceID: "mtg-1", Text: "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	m.sources.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSourceNotFound)
	_, err = svc.AppendSegment(ctx, AppendSegmentInput{SourceID: "missing", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	doc := domain.NewSource("doc-1", domain.SourceKindDocument, "", "text", "", fixedTime)
	m.sources.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	_, err = svc.AppendSegment(ctx, AppendSegmentInput{SourceID: "doc-1", Text: "hi"})
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)

	m.sources.AssertNotCalled(t, "AppendContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkspaceService_GenerateSummary(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Alice: ship it."), nil)
	m.model.On("Complete", mock.Anything, mock.Anything).Return(fullSummary, nil)
	m.summaries.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.Summary) bool {
		return s.SourceID == "mtg-1" && s.ChunkCount == 1
	})).Return(nil)

	summary, err := svc.GenerateSummary(context.Background(), "mtg-1")

	require.NoError(t, err)
	assert.Equal(t, "mtg-1", summary.SourceID)
	m.summaries.AssertExpectations(t)
}

func TestWorkspaceService_GenerateSummary_Errors(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSourceNotFound)
	_, err := svc.GenerateSummary(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	m.sources.On("GetByID", mock.Anything, "blank").Return(meetingSource("   "), nil)
	_, err = svc.GenerateSummary(context.Background(), "blank")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Alice: ship it."), nil)
	m.model.On("Complete", mock.Anything, mock.Anything).Return("", domain.NewModelUnavailableError(errors.New("down")))
	_, err = svc.GenerateSummary(context.Background(), "mtg-1")
	assert.ErrorIs(t, err, domain.ErrSummaryGeneration)

	m.summaries.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestWorkspaceService_GenerateGraph(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Alice said the project is late."), nil)
	m.model.On("Complete", mock.Anything, mock.Anything).Return("not json", nil)
	m.graphs.On("Upsert", mock.Anything, mock.MatchedBy(func(g *domain.StoredGraph) bool {
		return g.SourceID == "mtg-1" && g.Fallback
	})).Return(nil)

	graph, err := svc.GenerateGraph(context.Background(), "mtg-1")

	require.NoError(t, err)
	assert.Len(t, graph.Graph.Nodes, 2)
	m.graphs.AssertExpectations(t)
}

func TestWorkspaceService_Chat(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Alice: ship Friday."), nil)
	m.model.On("Complete", mock.Anything, mock.Anything).Return("Friday.", nil)
	m.chats.On("Append", mock.Anything, mock.MatchedBy(func(turn *domain.ChatTurn) bool {
		return turn.ID == "id-1" && turn.SourceID == "mtg-1" &&
			turn.Question == "When?" && turn.Answer == "Friday." && turn.CreatedAt.Equal(fixedTime)
	})).Return(errors.New("history unavailable"))

	answer, err := svc.Chat(context.Background(), "mtg-1", " When? ")

	require.NoError(t, err)
	assert.Equal(t, "Friday.", answer.Answer)
	assert.Equal(t, domain.AnswerModeDirect, answer.Mode)
	assert.Equal(t, FollowUps(domain.SourceKindMeeting), answer.Suggestions)
	m.chats.AssertExpectations(t)
}

func TestWorkspaceService_History(t *testing.T) {
	svc, m := newWorkspace(t)

	page := &ChatPageResult{Items: []*domain.ChatTurn{{ID: "t1"}}, HasMore: false}
	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("x"), nil)
	m.chats.On("ListBySource", mock.Anything, "mtg-1", (*pagination.Cursor)(nil), pagination.MaxLimit).Return(page, nil)

	got, err := svc.History(context.Background(), "mtg-1", "", 1000)

	require.NoError(t, err)
	assert.Same(t, page, got)

	_, err = svc.History(context.Background(), "mtg-1", "%%%", 10)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)

	m.sources.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSourceNotFound)
	_, err = svc.History(context.Background(), "missing", "", 10)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestWorkspaceService_Suggestions(t *testing.T) {
	svc, m := newWorkspace(t)

	doc := domain.NewSource("doc-1", domain.SourceKindDocument, "Design notes", "", "", fixedTime)
	m.sources.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

	got, err := svc.Suggestions(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, Suggestions(domain.SourceKindDocument), got)
	assert.NotEqual(t, Suggestions(domain.SourceKindMeeting), got)

	got[0] = "mutated"
	assert.NotEqual(t, "mutated", Suggestions(domain.SourceKindDocument)[0])
}

func TestWorkspaceService_BuildIndex(t *testing.T) {
	svc, m := newWorkspace(t)

	idx := vectorindex.New("mtg-1", "m", fixedTime)
	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("text"), nil)
	m.indexer.On("Build", mock.Anything, "mtg-1", "text").Return(idx, nil)

	got, err := svc.BuildIndex(context.Background(), "mtg-1")

	require.NoError(t, err)
	assert.Same(t, idx, got)
}

func TestWorkspaceService_TranslateAndInsights(t *testing.T) {
	svc, m := newWorkspace(t)

	m.sources.On("GetByID", mock.Anything, "mtg-1").Return(meetingSource("Hello"), nil)
	m.model.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "Translate")
	})).Return("Hallo", nil)
	m.model.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "Analyze")
	})).Return("## Quality Score\n7", nil)

	translated, err := svc.Translate(context.Background(), "mtg-1", "German")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", translated)

	review, err := svc.Insights(context.Background(), "mtg-1")
	require.NoError(t, err)
	assert.Equal(t, "## Quality Score\n7", review)
}
