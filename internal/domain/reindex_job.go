package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reindex job statuses.
const (
	JobStatusNew        = "new"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ReindexJob asks the background worker to rebuild one document's index
// entries from its persisted lexical record. Jobs for the same document are
// processed one at a time, which keeps re-ingestion writes ordered per id.
type ReindexJob struct {
	ID           uuid.UUID
	DocumentID   string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReindexJobRepository is the persisted single-writer job queue.
type ReindexJobRepository interface {
	Enqueue(ctx context.Context, job *ReindexJob) error

	// AcquireNext atomically claims the oldest new job, marking it
	// processing. Returns nil, nil when the queue is empty.
	AcquireNext(ctx context.Context) (*ReindexJob, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}
