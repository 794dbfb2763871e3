package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	jobTimeout          = 60 * time.Second
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
)

// ReindexWorker drains the reindex job queue, rebuilding one document's index
// entries per job from its persisted lexical record. Jobs are claimed with
// row locks, so multiple workers never process the same job.
type ReindexWorker struct {
	jobRepo       domain.ReindexJobRepository
	lexical       domain.LexicalIndex
	ingestUsecase usecase.IngestDocumentUsecase
	logger        *slog.Logger
	stopChan      chan struct{}
	backoff       time.Duration
}

func NewReindexWorker(
	jobRepo domain.ReindexJobRepository,
	lexical domain.LexicalIndex,
	ingestUsecase usecase.IngestDocumentUsecase,
	logger *slog.Logger,
) *ReindexWorker {
	return &ReindexWorker{
		jobRepo:       jobRepo,
		lexical:       lexical,
		ingestUsecase: ingestUsecase,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

func (w *ReindexWorker) Start() {
	w.logger.Info("Starting ReindexWorker")
	go w.run()
}

func (w *ReindexWorker) Stop() {
	w.logger.Info("Stopping ReindexWorker")
	close(w.stopChan)
}

func (w *ReindexWorker) run() {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *ReindexWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobRepo.AcquireNext(ctx)
	if err != nil {
		w.logger.Error("Failed to acquire next job", "error", err)
		return
	}
	if job == nil {
		return // No jobs
	}

	w.logger.Info("Processing reindex job", "job_id", job.ID, "document_id", job.DocumentID)

	processErr := w.reindexDocument(ctx, job.DocumentID)

	status := domain.JobStatusCompleted
	var errMsg *string
	if processErr != nil {
		status = domain.JobStatusFailed
		msg := processErr.Error()
		errMsg = &msg
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Warn("Worker backing off", "job_id", job.ID, "backoff", w.backoff, "error", processErr)
	} else {
		w.backoff = 0
		w.logger.Info("Reindex job completed", "job_id", job.ID)
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		w.logger.Error("Failed to update job status", "job_id", job.ID, "error", err)
	}
}

func (w *ReindexWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// reindexDocument replays ingestion from the document's lexical entry. The
// stored image and figure texts are turned back into visual elements so the
// rebuilt vector records carry the same annotations.
func (w *ReindexWorker) reindexDocument(ctx context.Context, documentID string) error {
	entry, err := w.lexical.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load lexical entry: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("document %s has no lexical entry", documentID)
	}

	input := usecase.IngestDocumentInput{
		Text:       entry.FullText,
		OwnerID:    entry.OwnerID,
		DocumentID: entry.DocumentID,
		Title:      entry.Title,
	}
	for _, imageText := range entry.ImageTexts {
		input.Visuals = append(input.Visuals, domain.VisualElement{
			Type:    domain.ElementImage,
			Content: imageText,
		})
	}
	for _, figureText := range entry.FigureTexts {
		input.Visuals = append(input.Visuals, figureFromStoredText(figureText))
	}

	return w.ingestUsecase.Execute(ctx, input)
}

// figureFromStoredText undoes the "[FIGURE] caption content" annotation so
// re-ingestion does not double-tag the text. Unrecognized text passes through
// as plain figure content.
func figureFromStoredText(stored string) domain.VisualElement {
	for _, tag := range []string{"[FIGURE] ", "[TABLE] "} {
		if strings.HasPrefix(stored, tag) {
			elemType := domain.ElementFigure
			if tag == "[TABLE] " {
				elemType = domain.ElementTable
			}
			return domain.VisualElement{
				Type:    elemType,
				Content: strings.TrimPrefix(stored, tag),
			}
		}
	}
	return domain.VisualElement{Type: domain.ElementFigure, Content: stored}
}
