package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) Enqueue(ctx context.Context, job *domain.ReindexJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockJobRepo) AcquireNext(ctx context.Context) (*domain.ReindexJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReindexJob), args.Error(1)
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	return m.Called(ctx, id, status, errorMessage).Error(0)
}

type mockLexicalIndex struct {
	mock.Mock
}

func (m *mockLexicalIndex) Put(ctx context.Context, entry domain.LexicalEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockLexicalIndex) Get(ctx context.Context, documentID string) (*domain.LexicalEntry, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LexicalEntry), args.Error(1)
}

func (m *mockLexicalIndex) Delete(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

func (m *mockLexicalIndex) Search(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LexicalHit), args.Error(1)
}

func (m *mockLexicalIndex) AllDocumentIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockIngestUsecase struct {
	mock.Mock
}

func (m *mockIngestUsecase) Execute(ctx context.Context, input usecase.IngestDocumentInput) error {
	return m.Called(ctx, input).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestProcessNextJob_RebuildsDocumentFromLexicalEntry(t *testing.T) {
	jobs := new(mockJobRepo)
	lexical := new(mockLexicalIndex)
	ingest := new(mockIngestUsecase)

	job := &domain.ReindexJob{ID: uuid.New(), DocumentID: "doc-1", Status: domain.JobStatusProcessing}
	jobs.On("AcquireNext", mock.Anything).Return(job, nil)
	lexical.On("Get", mock.Anything, "doc-1").Return(&domain.LexicalEntry{
		DocumentID:  "doc-1",
		OwnerID:     "alice",
		Title:       "Photosynthesis",
		FullText:    "document body text",
		ImageTexts:  []string{"a leaf"},
		FigureTexts: []string{"[FIGURE] Figure 1 energy flow"},
	}, nil)
	ingest.On("Execute", mock.Anything, mock.MatchedBy(func(input usecase.IngestDocumentInput) bool {
		return input.DocumentID == "doc-1" &&
			input.Text == "document body text" &&
			len(input.Visuals) == 2 &&
			input.Visuals[0].Type == domain.ElementImage &&
			input.Visuals[1].Type == domain.ElementFigure
	})).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusCompleted, (*string)(nil)).Return(nil)

	w := NewReindexWorker(jobs, lexical, ingest, testLogger())
	w.processNextJob()

	jobs.AssertExpectations(t)
	ingest.AssertExpectations(t)
	assert.Equal(t, time.Duration(0), w.backoff)
}

func TestProcessNextJob_MissingEntryFailsJob(t *testing.T) {
	jobs := new(mockJobRepo)
	lexical := new(mockLexicalIndex)
	ingest := new(mockIngestUsecase)

	job := &domain.ReindexJob{ID: uuid.New(), DocumentID: "doc-gone"}
	jobs.On("AcquireNext", mock.Anything).Return(job, nil)
	lexical.On("Get", mock.Anything, "doc-gone").Return(nil, nil)
	jobs.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusFailed, mock.MatchedBy(func(msg *string) bool {
		return msg != nil && *msg != ""
	})).Return(nil)

	w := NewReindexWorker(jobs, lexical, ingest, testLogger())
	w.processNextJob()

	ingest.AssertNotCalled(t, "Execute")
	assert.Equal(t, initialBackoff, w.backoff)
}

func TestProcessNextJob_EmptyQueueIsQuiet(t *testing.T) {
	jobs := new(mockJobRepo)
	jobs.On("AcquireNext", mock.Anything).Return(nil, nil)

	w := NewReindexWorker(jobs, new(mockLexicalIndex), new(mockIngestUsecase), testLogger())
	w.processNextJob()

	jobs.AssertNotCalled(t, "UpdateStatus")
}

func TestNextBackoff_DoublesAndCaps(t *testing.T) {
	w := NewReindexWorker(new(mockJobRepo), new(mockLexicalIndex), new(mockIngestUsecase), testLogger())

	b := w.nextBackoff(0)
	assert.Equal(t, initialBackoff, b)

	b = w.nextBackoff(b)
	assert.Equal(t, 2*time.Second, b)

	b = w.nextBackoff(10 * time.Minute)
	assert.Equal(t, maxBackoff, b)
}

func TestProcessNextJob_FailureError(t *testing.T) {
	jobs := new(mockJobRepo)
	lexical := new(mockLexicalIndex)
	ingest := new(mockIngestUsecase)

	job := &domain.ReindexJob{ID: uuid.New(), DocumentID: "doc-2"}
	jobs.On("AcquireNext", mock.Anything).Return(job, nil)
	lexical.On("Get", mock.Anything, "doc-2").Return(&domain.LexicalEntry{
		DocumentID: "doc-2",
		FullText:   "text",
	}, nil)
	ingest.On("Execute", mock.Anything, mock.Anything).Return(errors.New("embedder down"))
	jobs.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusFailed, mock.Anything).Return(nil)

	w := NewReindexWorker(jobs, lexical, ingest, testLogger())
	w.processNextJob()

	jobs.AssertExpectations(t)
	assert.Equal(t, initialBackoff, w.backoff)
}
