package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"github.com/stretchr/testify/mock"
)

var fixedTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// MockCompleter mocks the generative model
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockEmbedder mocks the embedding model
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// letterEmbedder embeds text as its letter histogram.
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		} else if unicode.IsDigit(r) {
			vec[0] += 0.01
		}
	}
	return vec, nil
}

// memIndexStore keeps serialized indexes in memory
type memIndexStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	saveErr error
}

func newMemIndexStore() *memIndexStore {
	return &memIndexStore{data: make(map[string][]byte)}
}

func (s *memIndexStore) Save(_ context.Context, idx *vectorindex.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := vectorindex.Encode(idx)
	if err != nil {
		return err
	}
	s.data[idx.SourceID] = b
	s.saves++
	return nil
}

func (s *memIndexStore) Load(_ context.Context, sourceID string) (*vectorindex.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[sourceID]
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	return vectorindex.Decode(b)
}

func (s *memIndexStore) Delete(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sourceID]; !ok {
		return domain.ErrIndexNotFound
	}
	delete(s.data, sourceID)
	return nil
}

// MockIndexProvider mocks the chat engine's index access
type MockIndexProvider struct {
	mock.Mock
}

func (m *MockIndexProvider) Load(ctx context.Context, sourceID, text string) (*vectorindex.Index, bool) {
	args := m.Called(ctx, sourceID, text)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*vectorindex.Index), args.Bool(1)
}

func (m *MockIndexProvider) Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error) {
	args := m.Called(ctx, sourceID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorindex.Index), args.Error(1)
}

func (m *MockIndexProvider) Query(ctx context.Context, idx *vectorindex.Index, question string, k int) ([]string, error) {
	args := m.Called(ctx, idx, question, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockSourceRepo mocks the source repository
type MockSourceRepo struct {
	mock.Mock
}

func (m *MockSourceRepo) Upsert(ctx context.Context, s *domain.Source) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSourceRepo) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceRepo) List(ctx context.Context, filter SourceFilter, cursor *pagination.Cursor, limit int) (*SourcePageResult, error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SourcePageResult), args.Error(1)
}

func (m *MockSourceRepo) AppendContent(ctx context.Context, id, text string, at time.Time) (*domain.Source, error) {
	args := m.Called(ctx, id, text, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSummaryRepo mocks the summary repository
type MockSummaryRepo struct {
	mock.Mock
}

func (m *MockSummaryRepo) Upsert(ctx context.Context, s *domain.Summary) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSummaryRepo) GetBySource(ctx context.Context, sourceID string) (*domain.Summary, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Summary), args.Error(1)
}

// MockGraphRepo mocks the knowledge graph repository
type MockGraphRepo struct {
	mock.Mock
}

func (m *MockGraphRepo) Upsert(ctx context.Context, g *domain.StoredGraph) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGraphRepo) GetBySource(ctx context.Context, sourceID string) (*domain.StoredGraph, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredGraph), args.Error(1)
}

// MockChatRepo mocks the chat history repository
type MockChatRepo struct {
	mock.Mock
}

func (m *MockChatRepo) Append(ctx context.Context, turn *domain.ChatTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockChatRepo) ListBySource(ctx context.Context, sourceID string, cursor *pagination.Cursor, limit int) (*ChatPageResult, error) {
	args := m.Called(ctx, sourceID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatPageResult), args.Error(1)
}

// MockIndexJobRepo mocks the index job repository
type MockIndexJobRepo struct {
	mock.Mock
}

func (m *MockIndexJobRepo) Create(ctx context.Context, job *domain.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIndexJobRepo) CreateIfNoPending(ctx context.Context, job *domain.IndexJob) (bool, error) {
	args := m.Called(ctx, job)
	return args.Bool(0), args.Error(1)
}

// MockIndexer mocks index build and removal
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error) {
	args := m.Called(ctx, sourceID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorindex.Index), args.Error(1)
}

func (m *MockIndexer) Delete(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

type testTxRepos struct {
	sources   SourceRepositoryInterface
	indexJobs IndexJobRepositoryInterface
}

func (t *testTxRepos) Sources() SourceRepositoryInterface {
	return t.sources
}

func (t *testTxRepos) IndexJobs() IndexJobRepositoryInterface {
	return t.indexJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

type fixedUUID struct {
	ids []string
	n   int
}

func (f *fixedUUID) NewString() string {
	id := f.ids[f.n%len(f.ids)]
	f.n++
	return id
}
