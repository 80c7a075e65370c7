package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
	"github.com/huddlehq/huddle/internal/vectorindex"
)

const (
	// MaxRetries is the maximum number of attempts for an index job
	MaxRetries = 3

	claimBatchSize = 20
)

// IndexJobRepository claims and updates index jobs
type IndexJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// SourceTextReader resolves a source id to its text
type SourceTextReader interface {
	GetText(ctx context.Context, id string) (string, error)
}

// IndexBuilder builds and persists an embedding index
type IndexBuilder interface {
	Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error)
}

// IndexWorker pre-builds embedding indexes for long sources
type IndexWorker struct {
	repo    IndexJobRepository
	sources SourceTextReader
	builder IndexBuilder
	logger  *slog.Logger
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, sources SourceTextReader, builder IndexBuilder, logger *slog.Logger) *IndexWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexWorker{
		repo:    repo,
		sources: sources,
		builder: builder,
		logger:  logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing index jobs", "count", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("index job bookkeeping failed", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	log := w.logger.With("job_id", job.ID, "source_id", job.SourceID)
	telemetry.AddBreadcrumb(ctx, "index_job", "building index for "+job.SourceID)

	// Claims taken over from a stalled worker arrive with retries already counted.
	if job.Retries >= MaxRetries {
		log.Warn("index job abandoned too often", "retries", job.Retries)
		return w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, "max retries exceeded: worker stalled")
	}

	text, err := w.sources.GetText(ctx, job.SourceID)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			return w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, err.Error())
		}
		return w.handleJobFailure(ctx, job, err)
	}
	if strings.TrimSpace(text) == "" {
		return w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, domain.ErrEmptyInput.Error())
	}

	idx, err := w.builder.Build(ctx, job.SourceID, text)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Info("index job completed", "chunks", idx.Len())
	return nil
}

// handleJobFailure requeues the job until MaxRetries attempts have failed.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log := w.logger.With("job_id", job.ID, "source_id", job.SourceID)
	log.Warn("index job failed", "error", jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	attempt := job.Retries + 1
	if attempt >= MaxRetries {
		log.Warn("index job exceeded max retries", "max_retries", MaxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("index job %s for %s: %w", job.ID, job.SourceID, jobErr))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", attempt, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
