package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reindexJobRepository struct {
	pool *pgxpool.Pool
}

// NewReindexJobRepository creates the persisted reindex job queue.
func NewReindexJobRepository(pool *pgxpool.Pool) domain.ReindexJobRepository {
	return &reindexJobRepository{pool: pool}
}

func (r *reindexJobRepository) Enqueue(ctx context.Context, job *domain.ReindexJob) error {
	query := `
		INSERT INTO rag_reindex_jobs (id, document_id, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.DocumentID, job.Status, job.ErrorMessage, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reindex job: %w", err)
	}
	return nil
}

// AcquireNext claims the oldest new job with SKIP LOCKED so multiple workers
// never double-process, marking it processing in the same statement.
func (r *reindexJobRepository) AcquireNext(ctx context.Context) (*domain.ReindexJob, error) {
	query := `
		WITH next_job AS (
			SELECT id
			FROM rag_reindex_jobs
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE rag_reindex_jobs
		SET status = 'processing', updated_at = $1
		FROM next_job
		WHERE rag_reindex_jobs.id = next_job.id
		RETURNING rag_reindex_jobs.id, rag_reindex_jobs.document_id, rag_reindex_jobs.status,
		          rag_reindex_jobs.error_message, rag_reindex_jobs.created_at, rag_reindex_jobs.updated_at
	`

	var job domain.ReindexJob
	err := r.pool.QueryRow(ctx, query, time.Now()).Scan(
		&job.ID, &job.DocumentID, &job.Status, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire next reindex job: %w", err)
	}
	return &job, nil
}

func (r *reindexJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	query := `
		UPDATE rag_reindex_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := r.pool.Exec(ctx, query, status, errorMessage, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update reindex job status: %w", err)
	}
	return nil
}
