package usecase_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	return "mock-encoder"
}

type mockVectorStore struct {
	mock.Mock
}

func (m *mockVectorStore) Add(ctx context.Context, records []domain.VectorRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockVectorStore) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.VectorHit, error) {
	args := m.Called(ctx, queryVector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VectorHit), args.Error(1)
}

func (m *mockVectorStore) PurgeDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type mockLexicalIndex struct {
	mock.Mock
}

func (m *mockLexicalIndex) Put(ctx context.Context, entry domain.LexicalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockLexicalIndex) Get(ctx context.Context, documentID string) (*domain.LexicalEntry, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LexicalEntry), args.Error(1)
}

func (m *mockLexicalIndex) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
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

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Chat(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, messages, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock-llm"
}

type mockConversationStore struct {
	mock.Mock
}

func (m *mockConversationStore) Append(ctx context.Context, identity string, turn domain.ConversationTurn) error {
	args := m.Called(ctx, identity, turn)
	return args.Error(0)
}

func (m *mockConversationStore) Recent(ctx context.Context, identity string, n int) ([]domain.ConversationTurn, error) {
	args := m.Called(ctx, identity, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversationTurn), args.Error(1)
}

func (m *mockConversationStore) Prune(ctx context.Context, identity string, max int) error {
	args := m.Called(ctx, identity, max)
	return args.Error(0)
}

func (m *mockConversationStore) Clear(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

type mockScholarClient struct {
	mock.Mock
}

func (m *mockScholarClient) Search(ctx context.Context, keywords []string, maxResults int) ([]domain.ScholarResult, error) {
	args := m.Called(ctx, keywords, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScholarResult), args.Error(1)
}

// mockTransactionManager runs the callback directly, without a database.
type mockTransactionManager struct {
	mock.Mock
}

func (m *mockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type mockRetrieveContextUsecase struct {
	mock.Mock
}

func (m *mockRetrieveContextUsecase) Execute(ctx context.Context, input usecase.RetrieveContextInput) (*usecase.RetrieveContextOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RetrieveContextOutput), args.Error(1)
}

func (m *mockRetrieveContextUsecase) Supplement(ctx context.Context, query string, k int) ([]usecase.ContextItem, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usecase.ContextItem), args.Error(1)
}

type mockVerifyAnswerUsecase struct {
	mock.Mock
}

func (m *mockVerifyAnswerUsecase) Execute(ctx context.Context, question string, contexts []usecase.ContextItem, answer string, threshold float64) (*usecase.VerifyAnswerOutput, error) {
	args := m.Called(ctx, question, contexts, answer, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.VerifyAnswerOutput), args.Error(1)
}
