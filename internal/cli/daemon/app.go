// Package daemon implements the huddled commands.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/database"
	"github.com/huddlehq/huddle/internal/jobs"
	"github.com/huddlehq/huddle/internal/openai"
	"github.com/huddlehq/huddle/internal/repository"
	"github.com/huddlehq/huddle/internal/service"
	"github.com/huddlehq/huddle/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// summaryRetryDelay is the pause between summary retries.
const summaryRetryDelay = time.Second

// App holds the process-wide dependencies shared by the daemon commands.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Sources   *repository.SourceRepository
	IndexJobs *repository.IndexJobRepository
	Indexes   *service.IndexService
	Workspace *service.WorkspaceService
}

// NewLogger returns the JSON process logger, at debug level when cfg.Debug is set.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("service", "huddled", "environment", cfg.Environment)
}

// ChunkConfig maps the configured chunking limits.
func ChunkConfig(cfg *config.Config) service.ChunkConfig {
	return service.ChunkConfig{
		ContextThreshold: cfg.ContextThreshold,
		MaxChars:         cfg.ChunkSize,
		Overlap:          cfg.ChunkOverlap,
	}
}

// ModelConfig builds the model client configuration once per process.
func ModelConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		ChatModel:           cfg.ChatModel,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}
}

// NewApp connects to the database and wires repositories and services.
// The caller owns Close.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	app, err := NewAppWithPool(ctx, cfg, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

// NewAppWithPool wires repositories and services over an existing pool.
func NewAppWithPool(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*App, error) {
	store, err := newIndexStore(ctx, cfg, pool, logger)
	if err != nil {
		return nil, err
	}

	var model *openai.Client
	if cfg.HasOpenAI() {
		model, err = openai.NewClient(ModelConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
	} else {
		logger.Warn("HUDDLE_OPENAI_API_KEY not set; model-backed routes will report the model as unavailable")
		model = openai.NewUnconfiguredClient()
	}

	chunkCfg := ChunkConfig(cfg)
	sources := repository.NewSourceRepository(pool)
	indexJobs := repository.NewIndexJobRepository(pool)

	indexes := service.NewIndexService(model, store, chunkCfg, cfg.EmbeddingModel, logger)
	workspace := service.NewWorkspaceService(service.WorkspaceDeps{
		Sources:     sources,
		Summaries:   repository.NewSummaryRepository(pool),
		Graphs:      repository.NewGraphRepository(pool),
		Chats:       repository.NewChatRepository(pool),
		IndexJobs:   indexJobs,
		TxRunner:    repository.NewTxRunner(pool),
		Summarizer:  service.NewSummaryService(model, chunkCfg, logger, service.WithSummaryRetries(cfg.SummaryRetries, summaryRetryDelay)),
		Extractor:   service.NewGraphService(model, chunkCfg, logger),
		Answerer:    service.NewChatService(model, indexes, chunkCfg, cfg.RetrievalTopK, logger),
		Translator:  service.NewTranslationService(model, chunkCfg, logger),
		Insights:    service.NewInsightService(model, chunkCfg, logger),
		Indexer:     indexes,
		ChunkConfig: chunkCfg,
		Logger:      logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Sources:   sources,
		IndexJobs: indexJobs,
		Indexes:   indexes,
		Workspace: workspace,
	}, nil
}

// NewIndexWorker returns a poller that builds queued indexes.
func (a *App) NewIndexWorker() *jobs.Worker {
	processor := jobs.NewIndexWorker(a.IndexJobs, a.Sources, a.Indexes, a.Logger)
	return jobs.NewWorker(processor, a.Config.IndexJobPollInterval, a.Logger)
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

func newIndexStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (service.IndexStore, error) {
	switch cfg.IndexBackend {
	case config.IndexBackendS3:
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("index store ready", "backend", cfg.IndexBackend, "bucket", cfg.S3Bucket)
		return storage.NewS3IndexStore(client), nil
	case config.IndexBackendPostgres:
		logger.Info("index store ready", "backend", cfg.IndexBackend)
		return repository.NewIndexRepository(pool), nil
	default:
		store, err := storage.NewFileIndexStore(cfg.IndexDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open index directory: %w", err)
		}
		logger.Info("index store ready", "backend", config.IndexBackendFile, "dir", cfg.IndexDir)
		return store, nil
	}
}
