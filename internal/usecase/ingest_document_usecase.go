package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"rag-engine/internal/domain"
)

// IngestDocumentInput is one document handed to the ingestion pipeline.
type IngestDocumentInput struct {
	Text       string
	Visuals    []domain.VisualElement
	OwnerID    string
	DocumentID string
	Title      string
}

// IngestDocumentUsecase splits, embeds and indexes a document into both the
// vector store and the lexical index. Re-ingesting a document id replaces its
// previous records entirely.
type IngestDocumentUsecase interface {
	Execute(ctx context.Context, input IngestDocumentInput) error
}

type ingestDocumentUsecase struct {
	splitter  domain.Splitter
	encoder   domain.VectorEncoder
	vectors   domain.VectorStore
	lexical   domain.LexicalIndex
	txManager domain.TransactionManager

	// Per-document locks serialize concurrent ingestion of the same id so
	// purge and insert never interleave across requests.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIngestDocumentUsecase wires the ingestion pipeline.
func NewIngestDocumentUsecase(
	splitter domain.Splitter,
	encoder domain.VectorEncoder,
	vectors domain.VectorStore,
	lexical domain.LexicalIndex,
	txManager domain.TransactionManager,
) IngestDocumentUsecase {
	return &ingestDocumentUsecase{
		splitter:  splitter,
		encoder:   encoder,
		vectors:   vectors,
		lexical:   lexical,
		txManager: txManager,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (u *ingestDocumentUsecase) Execute(ctx context.Context, input IngestDocumentInput) error {
	if err := validateIngestInput(input); err != nil {
		return err
	}

	lock := u.documentLock(input.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	chunks := u.buildChunks(input)
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no indexable chunks")
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	embeddings, err := u.encoder.Encode(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed document chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	now := time.Now()
	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ID:        uuid.New(),
			Chunk:     c,
			Embedding: pgvector.NewVector(embeddings[i]),
			CreatedAt: now,
		}
	}

	entry := buildLexicalEntry(input, chunks, now)

	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := u.vectors.PurgeDocument(txCtx, input.DocumentID); err != nil {
			return fmt.Errorf("failed to purge previous vectors: %w", err)
		}
		if err := u.vectors.Add(txCtx, records); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}
		if err := u.lexical.Put(txCtx, entry); err != nil {
			return fmt.Errorf("failed to store lexical entry: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("document_ingest_failed",
			slog.String("document_id", input.DocumentID),
			slog.String("error", err.Error()),
		)
		return err
	}

	slog.Info("document_ingested",
		slog.String("document_id", input.DocumentID),
		slog.Int("chunk_count", len(chunks)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func validateIngestInput(input IngestDocumentInput) error {
	if strings.TrimSpace(input.DocumentID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(input.Text) == "" && len(input.Visuals) == 0 {
		return fmt.Errorf("document has no text and no visual elements")
	}
	return nil
}

func (u *ingestDocumentUsecase) documentLock(documentID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	lock, ok := u.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[documentID] = lock
	}
	return lock
}

// buildChunks splits the body text and each visual description into chunks,
// all carrying the document's provenance metadata.
func (u *ingestDocumentUsecase) buildChunks(input IngestDocumentInput) []domain.DocumentChunk {
	var chunks []domain.DocumentChunk

	for _, piece := range u.splitter.Split(input.Text) {
		chunks = append(chunks, domain.DocumentChunk{
			SourceID:    input.DocumentID,
			ElementType: domain.ElementText,
			Content:     piece,
			OwnerID:     input.OwnerID,
			DocumentID:  input.DocumentID,
			Title:       input.Title,
		})
	}

	for _, visual := range input.Visuals {
		annotated := visual.AnnotatedContent()
		if strings.TrimSpace(annotated) == "" {
			continue
		}
		for _, piece := range u.splitter.Split(annotated) {
			chunks = append(chunks, domain.DocumentChunk{
				SourceID:    input.DocumentID,
				Page:        visual.Page,
				ElementType: visual.Type,
				Content:     piece,
				Caption:     visual.Caption,
				OwnerID:     input.OwnerID,
				DocumentID:  input.DocumentID,
				Title:       input.Title,
			})
		}
	}

	return chunks
}

func buildLexicalEntry(input IngestDocumentInput, chunks []domain.DocumentChunk, now time.Time) domain.LexicalEntry {
	entry := domain.LexicalEntry{
		DocumentID: input.DocumentID,
		OwnerID:    input.OwnerID,
		Title:      input.Title,
		FullText:   input.Text,
		UpdatedAt:  now,
	}
	for _, c := range chunks {
		entry.ChunkTexts = append(entry.ChunkTexts, c.Content)
	}
	for _, v := range input.Visuals {
		switch v.Type {
		case domain.ElementImage:
			entry.ImageTexts = append(entry.ImageTexts, v.Content)
		case domain.ElementFigure, domain.ElementTable:
			entry.FigureTexts = append(entry.FigureTexts, v.AnnotatedContent())
		}
	}
	return entry
}
