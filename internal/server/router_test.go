package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/huddlehq/huddle/internal/api/handlers"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/huddlehq/huddle/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routerTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// stubWorkspace answers every call for source "known" and reports
// not found otherwise. It records the last operation it served.
type stubWorkspace struct {
	lastOp      string
	hadDeadline bool
}

func (s *stubWorkspace) record(ctx context.Context, op, id string) error {
	s.lastOp = op
	_, s.hadDeadline = ctx.Deadline()
	if id != "known" {
		return domain.ErrSourceNotFound
	}
	return nil
}

func (s *stubWorkspace) PutSource(ctx context.Context, in service.PutSourceInput) (*service.PutSourceOutput, error) {
	s.record(ctx, "PutSource", "known")
	return &service.PutSourceOutput{Source: domain.NewSource(in.ID, in.Kind, in.Title, in.Content, in.Language, routerTime)}, nil
}

func (s *stubWorkspace) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	if err := s.record(ctx, "GetSource", id); err != nil {
		return nil, err
	}
	return domain.NewSource(id, domain.SourceKindMeeting, "", "text", "", routerTime), nil
}

func (s *stubWorkspace) ListSources(ctx context.Context, filter service.SourceFilter, cursor string, limit int) (*service.SourcePageResult, error) {
	s.record(ctx, "ListSources", "known")
	return &service.SourcePageResult{Items: []*domain.Source{
		domain.NewSource("known", domain.SourceKindMeeting, "", "text", "", routerTime),
	}}, nil
}

func (s *stubWorkspace) AppendSegment(ctx context.Context, in service.AppendSegmentInput) (*service.PutSourceOutput, error) {
	if err := s.record(ctx, "AppendSegment", in.SourceID); err != nil {
		return nil, err
	}
	return &service.PutSourceOutput{Source: domain.NewSource(in.SourceID, domain.SourceKindMeeting, "", in.Text, "", routerTime)}, nil
}

func (s *stubWorkspace) DeleteSource(ctx context.Context, id string) error {
	return s.record(ctx, "DeleteSource", id)
}

func (s *stubWorkspace) BuildIndex(ctx context.Context, id string) (*vectorindex.Index, error) {
	if err := s.record(ctx, "BuildIndex", id); err != nil {
		return nil, err
	}
	return vectorindex.New(id, "m", routerTime), nil
}

func (s *stubWorkspace) Translate(ctx context.Context, id, language string) (string, error) {
	return "translated", s.record(ctx, "Translate", id)
}

func (s *stubWorkspace) Insights(ctx context.Context, id string) (string, error) {
	return "insights", s.record(ctx, "Insights", id)
}

func (s *stubWorkspace) GenerateSummary(ctx context.Context, id string) (*domain.Summary, error) {
	if err := s.record(ctx, "GenerateSummary", id); err != nil {
		return nil, err
	}
	return &domain.Summary{SourceID: id, Content: "summary", ChunkCount: 1, CreatedAt: routerTime}, nil
}

func (s *stubWorkspace) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	if err := s.record(ctx, "GetSummary", id); err != nil {
		return nil, err
	}
	return &domain.Summary{SourceID: id, Content: "summary", CreatedAt: routerTime}, nil
}

func (s *stubWorkspace) GenerateGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	if err := s.record(ctx, "GenerateGraph", id); err != nil {
		return nil, err
	}
	return &domain.StoredGraph{SourceID: id, Graph: *domain.NewKnowledgeGraph(), CreatedAt: routerTime}, nil
}

func (s *stubWorkspace) GetGraph(ctx context.Context, id string) (*domain.StoredGraph, error) {
	if err := s.record(ctx, "GetGraph", id); err != nil {
		return nil, err
	}
	return &domain.StoredGraph{SourceID: id, Graph: *domain.NewKnowledgeGraph(), CreatedAt: routerTime}, nil
}

func (s *stubWorkspace) Chat(ctx context.Context, id, question string) (*domain.ChatAnswer, error) {
	if err := s.record(ctx, "Chat", id); err != nil {
		return nil, err
	}
	return &domain.ChatAnswer{Answer: "answer", Mode: domain.AnswerModeDirect}, nil
}

func (s *stubWorkspace) History(ctx context.Context, id, cursor string, limit int) (*service.ChatPageResult, error) {
	if err := s.record(ctx, "History", id); err != nil {
		return nil, err
	}
	return &service.ChatPageResult{Items: []*domain.ChatTurn{}}, nil
}

func (s *stubWorkspace) Suggestions(ctx context.Context, id string) ([]string, error) {
	if err := s.record(ctx, "Suggestions", id); err != nil {
		return nil, err
	}
	return []string{"q"}, nil
}

func setupRouter(timeout time.Duration) (http.Handler, *stubWorkspace) {
	ws := &stubWorkspace{}
	router := NewRouter(RouterConfig{
		SourceHandler:   handlers.NewSourceHandler(ws),
		AnalysisHandler: handlers.NewAnalysisHandler(ws),
		ChatHandler:     handlers.NewChatHandler(ws),
		HealthHandler:   handlers.NewHealthHandler(nil),
		RequestTimeout:  timeout,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return router, ws
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := setupRouter(0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
		op     string
		status int
	}{
		{http.MethodPut, "/sources/known", `{"kind":"meeting","content":"hi"}`, "PutSource", http.StatusOK},
		{http.MethodGet, "/sources/known", "", "GetSource", http.StatusOK},
		{http.MethodDelete, "/sources/known", "", "DeleteSource", http.StatusNoContent},
		{http.MethodGet, "/sources?search=x", "", "ListSources", http.StatusOK},
		{http.MethodPost, "/sources/known/segments", `{"speaker":"Ann","text":"hi"}`, "AppendSegment", http.StatusOK},
		{http.MethodPost, "/sources/unknown/segments", `{"text":"hi"}`, "AppendSegment", http.StatusNotFound},
		{http.MethodPost, "/sources/known/index", "", "BuildIndex", http.StatusOK},
		{http.MethodPost, "/sources/known/translate", `{"language":"fr"}`, "Translate", http.StatusOK},
		{http.MethodPost, "/sources/known/insights", "", "Insights", http.StatusOK},
		{http.MethodPost, "/summary/known", "", "GenerateSummary", http.StatusOK},
		{http.MethodGet, "/summary/known", "", "GetSummary", http.StatusOK},
		{http.MethodPost, "/knowledge-graph/known", "", "GenerateGraph", http.StatusOK},
		{http.MethodGet, "/knowledge-graph/known", "", "GetGraph", http.StatusOK},
		{http.MethodPost, "/chatbot/known/chat", `{"question":"why?"}`, "Chat", http.StatusOK},
		{http.MethodGet, "/chatbot/known/history", "", "History", http.StatusOK},
		{http.MethodGet, "/chatbot/known/suggestions", "", "Suggestions", http.StatusOK},
		{http.MethodGet, "/summary/unknown", "", "GetSummary", http.StatusNotFound},
		{http.MethodPost, "/chatbot/unknown/chat", `{"message":"hi"}`, "Chat", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			router, ws := setupRouter(0)

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.op, ws.lastOp)
		})
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, ws := setupRouter(0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
	assert.Empty(t, ws.lastOp)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := setupRouter(0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/summary/known", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_TimeoutOnAnalysisRoutes(t *testing.T) {
	router, ws := setupRouter(time.Minute)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/summary/known", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ws.hadDeadline)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary/known", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ws.hadDeadline)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sources/known/translate", bytes.NewReader([]byte(`{"language":"de"}`))))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ws.hadDeadline)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, ws := setupRouter(0)

	body := bytes.Repeat([]byte("a"), int(maxBodyBytes)+1)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sources/known", bytes.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, ws.lastOp)
}

func TestRouter_StreamedBodyTooLarge(t *testing.T) {
	router, ws := setupRouter(0)

	body := `{"kind":"meeting","content":"` + strings.Repeat("a", int(maxBodyBytes)) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/sources/known", strings.NewReader(body))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, ws.lastOp)
}
