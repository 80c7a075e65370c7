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
)

type ChatService interface {
	Chat(ctx context.Context, id, question string) (*domain.ChatAnswer, error)
	History(ctx context.Context, id, cursor string, limit int) (*service.ChatPageResult, error)
	Suggestions(ctx context.Context, id string) ([]string, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// ChatRequest accepts the question under either key.
type ChatRequest struct {
	Message  string `json:"message"`
	Question string `json:"question"`
}

type ChatResponse struct {
	Answer      string   `json:"answer"`
	Suggestions []string `json:"suggestions"`
	Mode        string   `json:"mode"`
}

type ChatTurnResponse struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ChatRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	question := strings.TrimSpace(req.Message)
	if question == "" {
		question = strings.TrimSpace(req.Question)
	}
	if question == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	answer, err := h.svc.Chat(r.Context(), id, question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	suggestions := answer.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	api.Success(w, http.StatusOK, ChatResponse{
		Answer:      answer.Answer,
		Suggestions: suggestions,
		Mode:        string(answer.Mode),
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := pagination.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.History(r.Context(), id, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]ChatTurnResponse, len(page.Items))
	for i, turn := range page.Items {
		items[i] = ChatTurnResponse{
			ID:        turn.ID,
			Question:  turn.Question,
			Answer:    turn.Answer,
			CreatedAt: turn.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	api.Success(w, http.StatusOK, pagination.PageResult[ChatTurnResponse]{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *ChatHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	suggestions, err := h.svc.Suggestions(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}
