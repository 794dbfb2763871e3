package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

func newIngestFixture() (*mockVectorEncoder, *mockVectorStore, *mockLexicalIndex, *mockTransactionManager, usecase.IngestDocumentUsecase) {
	encoder := new(mockVectorEncoder)
	vectors := new(mockVectorStore)
	lexical := new(mockLexicalIndex)
	tx := new(mockTransactionManager)
	uc := usecase.NewIngestDocumentUsecase(domain.NewSplitter(), encoder, vectors, lexical, tx)
	return encoder, vectors, lexical, tx, uc
}

func TestIngestDocument_Success(t *testing.T) {
	encoder, vectors, lexical, tx, uc := newIngestFixture()

	encoder.On("Encode", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 2
	})).Return([][]float32{{0.1, 0.2}, {0.3, 0.4}}, nil)

	tx.On("RunInTx", mock.Anything).Return(nil)
	vectors.On("PurgeDocument", mock.Anything, "doc-1").Return(nil)
	vectors.On("Add", mock.Anything, mock.MatchedBy(func(records []domain.VectorRecord) bool {
		return len(records) == 2 &&
			records[0].Chunk.DocumentID == "doc-1" &&
			records[0].Chunk.Title == "Photosynthesis"
	})).Return(nil)
	lexical.On("Put", mock.Anything, mock.MatchedBy(func(entry domain.LexicalEntry) bool {
		return entry.DocumentID == "doc-1" &&
			entry.Title == "Photosynthesis" &&
			len(entry.ChunkTexts) == 2 &&
			len(entry.ImageTexts) == 1
	})).Return(nil)

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{
		Text: "Photosynthesis converts light into chemical energy.",
		Visuals: []domain.VisualElement{
			{Type: domain.ElementImage, Content: "a leaf cross-section showing chloroplasts"},
		},
		OwnerID:    "alice",
		DocumentID: "doc-1",
		Title:      "Photosynthesis",
	})
	require.NoError(t, err)

	vectors.AssertExpectations(t)
	lexical.AssertExpectations(t)
}

func TestIngestDocument_VisualChunksCarryTypeTag(t *testing.T) {
	encoder, vectors, lexical, tx, uc := newIngestFixture()

	var embedded []string
	encoder.On("Encode", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		embedded = args.Get(1).([]string)
	}).Return([][]float32{{0.1}, {0.2}}, nil)

	tx.On("RunInTx", mock.Anything).Return(nil)
	vectors.On("PurgeDocument", mock.Anything, mock.Anything).Return(nil)
	vectors.On("Add", mock.Anything, mock.Anything).Return(nil)
	lexical.On("Put", mock.Anything, mock.Anything).Return(nil)

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{
		Text: "Body text.",
		Visuals: []domain.VisualElement{
			{Type: domain.ElementFigure, Caption: "Figure 1", Content: "energy flow diagram"},
		},
		DocumentID: "doc-2",
	})
	require.NoError(t, err)

	require.Len(t, embedded, 2)
	assert.Equal(t, "Body text.", embedded[0])
	assert.Equal(t, "[FIGURE] Figure 1 energy flow diagram", embedded[1])
}

func TestIngestDocument_RequiresDocumentID(t *testing.T) {
	_, _, _, _, uc := newIngestFixture()

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{Text: "some text"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "document id")
}

func TestIngestDocument_RequiresContent(t *testing.T) {
	_, _, _, _, uc := newIngestFixture()

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{DocumentID: "doc-3"})
	assert.Error(t, err)
}

func TestIngestDocument_EmbeddingCountMismatch(t *testing.T) {
	encoder, vectors, _, tx, uc := newIngestFixture()

	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}, {0.2}, {0.3}}, nil)

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{
		Text:       "short text",
		DocumentID: "doc-4",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings")
	tx.AssertNotCalled(t, "RunInTx")
	vectors.AssertNotCalled(t, "Add")
}

func TestIngestDocument_VectorFailureAbortsLexicalWrite(t *testing.T) {
	encoder, vectors, lexical, tx, uc := newIngestFixture()

	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	tx.On("RunInTx", mock.Anything).Return(nil)
	vectors.On("PurgeDocument", mock.Anything, mock.Anything).Return(nil)
	vectors.On("Add", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{
		Text:       "short text",
		DocumentID: "doc-5",
	})
	assert.Error(t, err)
	lexical.AssertNotCalled(t, "Put")
}

func TestIngestDocument_PurgesBeforeAdding(t *testing.T) {
	encoder, vectors, lexical, tx, uc := newIngestFixture()

	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	tx.On("RunInTx", mock.Anything).Return(nil)

	var order []string
	vectors.On("PurgeDocument", mock.Anything, "doc-6").Run(func(mock.Arguments) {
		order = append(order, "purge")
	}).Return(nil)
	vectors.On("Add", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "add")
	}).Return(nil)
	lexical.On("Put", mock.Anything, mock.Anything).Return(nil)

	err := uc.Execute(context.Background(), usecase.IngestDocumentInput{
		Text:       "replacement text",
		DocumentID: "doc-6",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"purge", "add"}, order)
}
