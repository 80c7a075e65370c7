package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/huddlehq/huddle/internal/api"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. A nil db skips the database check.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		api.Success(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		api.JSON(w, http.StatusServiceUnavailable, api.SuccessResponse{
			Data: HealthResponse{Status: "degraded", Database: "unreachable"},
		})
		return
	}

	api.Success(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
