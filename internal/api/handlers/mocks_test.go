package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type MockWorkspaceService struct {
	mock.Mock
}

func (m *MockWorkspaceService) PutSource(ctx context.Context, input service.PutSourceInput) (*service.PutSourceOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PutSourceOutput), args.Error(1)
}

func (m *MockWorkspaceService) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockWorkspaceService) ListSources(ctx context.Context, filter service.SourceFilter, cursor string, limit int) (*service.SourcePageResult, error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SourcePageResult), args.Error(1)
}

func (m *MockWorkspaceService) AppendSegment(ctx context.Context, input service.AppendSegmentInput) (*service.PutSourceOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PutSourceOutput), args.Error(1)
}

func (m *MockWorkspaceService) DeleteSource(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWorkspaceService) BuildIndex(ctx context.Context, id string) (*vectorindex.Index, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorindex.Index), args.Error(1)
}

func (m *MockWorkspaceService) Translate(ctx context.Context, id, language string) (string, error) {
	args := m.Called(ctx, id, language)
	return args.String(0), args.Error(1)
}

func (m *MockWorkspaceService) Insights(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockWorkspaceService) GenerateSummary(ctx context.Context, id string) (*domain.Summary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Summary), args.Error(1)
}

func (m *MockWorkspaceService) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Summary), args.Error(1)
}

func (m *MockWorkspaceService) GenerateGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredGraph), args.Error(1)
}

func (m *MockWorkspaceService) GetGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredGraph), args.Error(1)
}

func (m *MockWorkspaceService) Chat(ctx context.Context, id, question string) (*domain.ChatAnswer, error) {
	args := m.Called(ctx, id, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatAnswer), args.Error(1)
}

func (m *MockWorkspaceService) History(ctx context.Context, id, cursor string, limit int) (*service.ChatPageResult, error) {
	args := m.Called(ctx, id, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatPageResult), args.Error(1)
}

func (m *MockWorkspaceService) Suggestions(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// requestWithID builds a request carrying the chi {id} URL parameter.
func requestWithID(method, url, id string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}
