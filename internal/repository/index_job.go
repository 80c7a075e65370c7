package repository

import (
	"context"
	"errors"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIndexJobNotFound = errors.New("index job not found")

// ClaimLease is how long a processing job stays with the worker that claimed
// it. Older claims are taken over by the next ClaimPending.
const ClaimLease = 15 * time.Minute

const indexJobColumns = `id, source_id, status, retries, error, created_at, processed_at`

type IndexJobRepository struct {
	db    dbtx
	lease time.Duration
}

func NewIndexJobRepository(pool *pgxpool.Pool) *IndexJobRepository {
	return &IndexJobRepository{db: pool, lease: ClaimLease}
}

func NewIndexJobRepositoryWithTx(tx pgx.Tx) *IndexJobRepository {
	return &IndexJobRepository{db: tx, lease: ClaimLease}
}

func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	if err := domain.ValidateIndexJob(job); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidIndexJob.Message, err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_jobs (id, source_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.SourceID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

// CreateIfNoPending inserts job unless its source already has a pending
// job, and reports whether it was inserted.
func (r *IndexJobRepository) CreateIfNoPending(ctx context.Context, job *domain.IndexJob) (bool, error) {
	if err := domain.ValidateIndexJob(job); err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidIndexJob.Message, err)
	}
	cmdTag, err := r.db.Exec(ctx,
		`INSERT INTO index_jobs (id, source_id, status, retries, error, created_at, processed_at)
		 SELECT $1::uuid, $2::text, $3::text, $4::integer, $5::text, $6::timestamptz, $7::timestamptz
		 WHERE NOT EXISTS (
			 SELECT 1 FROM index_jobs WHERE source_id = $2 AND status = $8
		 )`,
		job.ID, job.SourceID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
		domain.IndexJobStatusPending,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	job, err := scanIndexJob(r.db.QueryRow(ctx,
		`SELECT `+indexJobColumns+` FROM index_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIndexJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit jobs to processing, oldest first. Pending
// jobs are eligible, and so are processing jobs whose claim is older than
// the lease; taking one over counts as a retry. Rows locked by another
// worker are skipped.
func (r *IndexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	if limit <= 0 {
		limit = 100
	}
	expired := time.Now().UTC().Add(-r.lease)

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id, status
			 FROM index_jobs
			 WHERE status = $1
			    OR (status = $3 AND (claimed_at IS NULL OR claimed_at < $4))
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE index_jobs
		 SET status = $3,
		     retries = CASE WHEN cte.status = $3 THEN index_jobs.retries + 1 ELSE index_jobs.retries END,
		     error = NULL,
		     processed_at = NULL,
		     claimed_at = NOW()
		 FROM cte
		 WHERE index_jobs.id = cte.id
		 RETURNING index_jobs.id, index_jobs.source_id, index_jobs.status, index_jobs.retries,
		           index_jobs.error, index_jobs.created_at, index_jobs.processed_at`,
		domain.IndexJobStatusPending, limit, domain.IndexJobStatusProcessing, expired,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IndexJob
	for rows.Next() {
		job, err := scanIndexJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus sets a job's status. Completed and failed jobs get a processed_at.
func (r *IndexJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IndexJobStatusCompleted || status == domain.IndexJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func (r *IndexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func scanIndexJob(row pgx.Row) (*domain.IndexJob, error) {
	var job domain.IndexJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.SourceID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
