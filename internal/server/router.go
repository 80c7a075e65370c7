package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/api/handlers"
	"github.com/huddlehq/huddle/internal/api/middleware"
)

const maxBodyBytes int64 = 10 * 1024 * 1024

type RouterConfig struct {
	SourceHandler   *handlers.SourceHandler
	AnalysisHandler *handlers.AnalysisHandler
	ChatHandler     *handlers.ChatHandler
	HealthHandler   *handlers.HealthHandler
	// RequestTimeout bounds the model-backed routes. Zero disables it.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Sentry)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.Health)
	} else {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}

	r.Get("/sources", cfg.SourceHandler.List)
	r.Route("/sources/{id}", func(r chi.Router) {
		r.Put("/", cfg.SourceHandler.Put)
		r.Get("/", cfg.SourceHandler.Get)
		r.Delete("/", cfg.SourceHandler.Delete)
		r.Post("/segments", cfg.SourceHandler.AppendSegment)

		r.Group(func(r chi.Router) {
			r.Use(timeout(cfg.RequestTimeout)...)
			r.Post("/index", cfg.SourceHandler.BuildIndex)
			r.Post("/translate", cfg.SourceHandler.Translate)
			r.Post("/insights", cfg.SourceHandler.Insights)
		})
	})

	r.Route("/summary/{id}", func(r chi.Router) {
		r.Get("/", cfg.AnalysisHandler.GetSummary)
		r.With(timeout(cfg.RequestTimeout)...).Post("/", cfg.AnalysisHandler.GenerateSummary)
	})

	r.Route("/knowledge-graph/{id}", func(r chi.Router) {
		r.Get("/", cfg.AnalysisHandler.GetGraph)
		r.With(timeout(cfg.RequestTimeout)...).Post("/", cfg.AnalysisHandler.GenerateGraph)
	})

	r.Route("/chatbot/{id}", func(r chi.Router) {
		r.Get("/history", cfg.ChatHandler.History)
		r.Get("/suggestions", cfg.ChatHandler.Suggestions)
		r.With(timeout(cfg.RequestTimeout)...).Post("/chat", cfg.ChatHandler.Chat)
	})

	return r
}

func timeout(d time.Duration) []func(http.Handler) http.Handler {
	if d <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{chimw.Timeout(d)}
}
