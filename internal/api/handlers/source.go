package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/pagination"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/huddlehq/huddle/internal/vectorindex"
)

type SourceService interface {
	PutSource(ctx context.Context, input service.PutSourceInput) (*service.PutSourceOutput, error)
	GetSource(ctx context.Context, id string) (*domain.Source, error)
	ListSources(ctx context.Context, filter service.SourceFilter, cursor string, limit int) (*service.SourcePageResult, error)
	AppendSegment(ctx context.Context, input service.AppendSegmentInput) (*service.PutSourceOutput, error)
	DeleteSource(ctx context.Context, id string) error
	BuildIndex(ctx context.Context, id string) (*vectorindex.Index, error)
	Translate(ctx context.Context, id, language string) (string, error)
	Insights(ctx context.Context, id string) (string, error)
}

type SourceHandler struct {
	svc SourceService
}

func NewSourceHandler(svc SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type PutSourceRequest struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type AppendSegmentRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type SourceResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Language  string `json:"language,omitempty"`
	Length    int    `json:"length"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type PutSourceResponse struct {
	Source      *SourceResponse `json:"source"`
	IndexQueued bool            `json:"index_queued"`
	IndexJobID  string          `json:"index_job_id,omitempty"`
}

type IndexResponse struct {
	SourceID   string `json:"source_id"`
	Model      string `json:"model"`
	ChunkCount int    `json:"chunk_count"`
	Dimension  int    `json:"dimension"`
	CreatedAt  string `json:"created_at"`
}

type TranslateRequest struct {
	Language string `json:"language"`
}

type TranslateResponse struct {
	SourceID    string `json:"source_id"`
	Language    string `json:"language"`
	Translation string `json:"translation"`
}

type InsightsResponse struct {
	SourceID string `json:"source_id"`
	Insights string `json:"insights"`
}

func sourceToResponse(s *domain.Source, withContent bool) *SourceResponse {
	resp := &SourceResponse{
		ID:        s.ID,
		Kind:      string(s.Kind),
		Title:     s.Title,
		Language:  s.Language,
		Length:    len([]rune(s.Content)),
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if withContent {
		resp.Content = s.Content
	}
	return resp
}

func (h *SourceHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req PutSourceRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	kind := domain.SourceKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if kind == "" {
		kind = domain.SourceKindMeeting
	}
	if !domain.IsValidSourceKind(kind) {
		api.Error(w, http.StatusBadRequest, "kind must be meeting or document")
		return
	}

	out, err := h.svc.PutSource(r.Context(), service.PutSourceInput{
		ID:       id,
		Kind:     kind,
		Title:    req.Title,
		Content:  req.Content,
		Language: req.Language,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if out.IndexQueued {
		status = http.StatusAccepted
	}
	api.Success(w, status, PutSourceResponse{
		Source:      sourceToResponse(out.Source, false),
		IndexQueued: out.IndexQueued,
		IndexJobID:  out.IndexJobID,
	})
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	src, err := h.svc.GetSource(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(src, r.URL.Query().Get("content") != "false"))
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := pagination.DefaultLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	filter := service.SourceFilter{
		Search: q.Get("search"),
		Kind:   domain.SourceKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
	}

	page, err := h.svc.ListSources(r.Context(), filter, q.Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*SourceResponse, len(page.Items))
	for i, src := range page.Items {
		items[i] = sourceToResponse(src, false)
	}

	api.Success(w, http.StatusOK, pagination.PageResult[*SourceResponse]{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *SourceHandler) AppendSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req AppendSegmentRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	out, err := h.svc.AppendSegment(r.Context(), service.AppendSegmentInput{
		SourceID: id,
		Speaker:  req.Speaker,
		Text:     req.Text,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if out.IndexJobID != "" {
		status = http.StatusAccepted
	}
	api.Success(w, status, PutSourceResponse{
		Source:      sourceToResponse(out.Source, false),
		IndexQueued: out.IndexQueued,
		IndexJobID:  out.IndexJobID,
	})
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteSource(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SourceHandler) BuildIndex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	idx, err := h.svc.BuildIndex(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, IndexResponse{
		SourceID:   idx.SourceID,
		Model:      idx.Model,
		ChunkCount: idx.Len(),
		Dimension:  idx.Dimension(),
		CreatedAt:  idx.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *SourceHandler) Translate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req TranslateRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		api.Error(w, http.StatusBadRequest, "language is required")
		return
	}

	translation, err := h.svc.Translate(r.Context(), id, language)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, TranslateResponse{
		SourceID:    id,
		Language:    language,
		Translation: translation,
	})
}

func (h *SourceHandler) Insights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	insights, err := h.svc.Insights(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, InsightsResponse{SourceID: id, Insights: insights})
}
