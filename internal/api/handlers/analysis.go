package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/domain"
)

type AnalysisService interface {
	GenerateSummary(ctx context.Context, id string) (*domain.Summary, error)
	GetSummary(ctx context.Context, id string) (*domain.Summary, error)
	GenerateGraph(ctx context.Context, id string) (*domain.StoredGraph, error)
	GetGraph(ctx context.Context, id string) (*domain.StoredGraph, error)
}

// AnalysisHandler serves summaries and knowledge graphs
type AnalysisHandler struct {
	svc AnalysisService
}

func NewAnalysisHandler(svc AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

type SummaryResponse struct {
	SourceID   string `json:"source_id"`
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

type GraphResponse struct {
	SourceID string `json:"source_id"`
	domain.KnowledgeGraph
	Fallback   bool   `json:"fallback"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

func summaryToResponse(s *domain.Summary) *SummaryResponse {
	return &SummaryResponse{
		SourceID:   s.SourceID,
		Summary:    s.Content,
		ChunkCount: s.ChunkCount,
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func graphToResponse(g *domain.StoredGraph) *GraphResponse {
	return &GraphResponse{
		SourceID:       g.SourceID,
		KnowledgeGraph: g.Graph,
		Fallback:       g.Fallback,
		ChunkCount:     g.ChunkCount,
		CreatedAt:      g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AnalysisHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	summary, err := h.svc.GenerateSummary(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, summaryToResponse(summary))
}

func (h *AnalysisHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	summary, err := h.svc.GetSummary(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, summaryToResponse(summary))
}

func (h *AnalysisHandler) GenerateGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	graph, err := h.svc.GenerateGraph(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, graphToResponse(graph))
}

func (h *AnalysisHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	graph, err := h.svc.GetGraph(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, graphToResponse(graph))
}
