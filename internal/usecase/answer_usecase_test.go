package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

func textContext(content string) usecase.ContextItem {
	return usecase.ContextItem{
		Chunk: domain.DocumentChunk{ElementType: domain.ElementText, Content: content},
		Score: 0.9,
	}
}

func newAnswerFixture() (*mockRetrieveContextUsecase, *mockLLMClient, *mockVerifyAnswerUsecase, *mockConversationStore, usecase.AnswerUsecase) {
	retriever := new(mockRetrieveContextUsecase)
	llm := new(mockLLMClient)
	verifier := new(mockVerifyAnswerUsecase)
	memory := new(mockConversationStore)
	uc := usecase.NewAnswerUsecase(retriever, usecase.NewPromptBuilder(), llm, verifier, memory, 512, 0.7)
	return retriever, llm, verifier, memory, uc
}

func TestAnswer_GeneratedWithoutVerification(t *testing.T) {
	retriever, llm, _, memory, uc := newAnswerFixture()

	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{textContext("chlorophyll absorbs light")},
	}, nil)
	llm.On("Chat", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: "<think>checking</think>Plants absorb light with chlorophyll.", Done: true}, nil)
	memory.On("Append", mock.Anything, "user-1", mock.Anything).Return(nil)
	memory.On("Recent", mock.Anything, "user-1", domain.MemoryWindow).Return([]domain.ConversationTurn{}, nil)
	memory.On("Prune", mock.Anything, "user-1", domain.MaxConversationTurns).Return(nil)

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question: "How do plants capture light?",
		Identity: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusGenerated, out.Status)
	assert.Equal(t, "Plants absorb light with chlorophyll.", out.Answer)
	assert.Len(t, out.Contexts, 1)
	memory.AssertCalled(t, "Append", mock.Anything, "user-1", mock.Anything)
	memory.AssertCalled(t, "Prune", mock.Anything, "user-1", domain.MaxConversationTurns)
}

func TestAnswer_EmptyRetrievalNeverCallsModel(t *testing.T) {
	retriever, llm, _, memory, uc := newAnswerFixture()

	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{}, nil)
	memory.On("Recent", mock.Anything, "user-2", domain.MemoryWindow).Return([]domain.ConversationTurn{}, nil)
	memory.On("Append", mock.Anything, "user-2", mock.MatchedBy(func(turn domain.ConversationTurn) bool {
		return turn.Answer == usecase.NoContextAnswer
	})).Return(nil)
	memory.On("Prune", mock.Anything, "user-2", domain.MaxConversationTurns).Return(nil)

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question: "Anything indexed about quasars?",
		Identity: "user-2",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNoContext, out.Status)
	assert.Equal(t, "No relevant information was found in the indexed documents.", out.Answer)
	llm.AssertNotCalled(t, "Chat")
	memory.AssertExpectations(t)
}

func TestAnswer_HistoryWindowReplayedIntoPrompt(t *testing.T) {
	retriever, llm, _, memory, uc := newAnswerFixture()

	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{textContext("some context")},
	}, nil)
	memory.On("Recent", mock.Anything, "user-3", domain.MemoryWindow).Return([]domain.ConversationTurn{
		{Question: "What is ATP?", Answer: "The cell's energy currency."},
	}, nil)
	memory.On("Append", mock.Anything, "user-3", mock.Anything).Return(nil)
	memory.On("Prune", mock.Anything, "user-3", mock.Anything).Return(nil)

	var prompt string
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		messages := args.Get(1).([]domain.Message)
		prompt = messages[len(messages)-1].Content
	}).Return(&domain.LLMResponse{Text: "Follow-up answer.", Done: true}, nil)

	_, err := uc.Execute(context.Background(), usecase.AskInput{
		Question: "And where is it produced?",
		Identity: "user-3",
	})
	require.NoError(t, err)

	assert.True(t, strings.Contains(prompt, "What is ATP?"))
	assert.True(t, strings.Contains(prompt, "The cell's energy currency."))
}

func TestAnswer_GenerationErrorYieldsErrorStatus(t *testing.T) {
	retriever, llm, _, memory, uc := newAnswerFixture()

	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{textContext("context")},
	}, nil)
	memory.On("Recent", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ConversationTurn{}, nil)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("model unavailable"))

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question: "A question",
		Identity: "user-4",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusError, out.Status)
	assert.Contains(t, out.Reason, "model unavailable")
	// A failed generation leaves the conversation log untouched.
	memory.AssertNotCalled(t, "Append")
}

func TestAnswer_VerificationDrivesFinalStatusAndMemory(t *testing.T) {
	retriever, llm, verifier, memory, uc := newAnswerFixture()

	contexts := []usecase.ContextItem{textContext("context")}
	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{Contexts: contexts}, nil)
	memory.On("Recent", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ConversationTurn{}, nil)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "Draft answer.", Done: true}, nil)

	report := domain.VerificationReport{Composite: 0.82}
	verifier.On("Execute", mock.Anything, "A question", contexts, "Draft answer.", 0.7).
		Return(&usecase.VerifyAnswerOutput{
			Answer:   "Corrected answer.",
			Status:   domain.StatusCorrected,
			Report:   report,
			Contexts: contexts,
		}, nil)

	memory.On("Append", mock.Anything, "user-5", mock.MatchedBy(func(turn domain.ConversationTurn) bool {
		return turn.Answer == "Corrected answer."
	})).Return(nil)
	memory.On("Prune", mock.Anything, "user-5", mock.Anything).Return(nil)

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question:         "A question",
		Identity:         "user-5",
		WantVerification: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCorrected, out.Status)
	assert.Equal(t, "Corrected answer.", out.Answer)
	assert.InDelta(t, 0.82, out.Score, 1e-9)
	require.NotNil(t, out.Report)
	memory.AssertExpectations(t)
}

func TestAnswer_MemoryFailureDoesNotFailAnswer(t *testing.T) {
	retriever, llm, _, memory, uc := newAnswerFixture()

	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{textContext("context")},
	}, nil)
	memory.On("Recent", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	memory.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "Answer.", Done: true}, nil)

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question: "A question",
		Identity: "user-6",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGenerated, out.Status)
}

func TestAnswer_ConfiguredThresholdAppliedWhenCallerOmitsOne(t *testing.T) {
	retriever := new(mockRetrieveContextUsecase)
	llm := new(mockLLMClient)
	verifier := new(mockVerifyAnswerUsecase)
	memory := new(mockConversationStore)
	uc := usecase.NewAnswerUsecase(retriever, usecase.NewPromptBuilder(), llm, verifier, memory, 512, 0.55)

	contexts := []usecase.ContextItem{textContext("context")}
	retriever.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{Contexts: contexts}, nil)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "Draft.", Done: true}, nil)
	verifier.On("Execute", mock.Anything, "A question", contexts, "Draft.", 0.55).
		Return(&usecase.VerifyAnswerOutput{
			Answer:   "Draft.",
			Status:   domain.StatusValidated,
			Report:   domain.VerificationReport{Composite: 0.6},
			Contexts: contexts,
		}, nil)

	out, err := uc.Execute(context.Background(), usecase.AskInput{
		Question:         "A question",
		WantVerification: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusValidated, out.Status)
	verifier.AssertExpectations(t)
}

func TestAnswer_EmptyQuestionRejected(t *testing.T) {
	_, _, _, _, uc := newAnswerFixture()

	out, err := uc.Execute(context.Background(), usecase.AskInput{Question: "  "})
	assert.Error(t, err)
	assert.Nil(t, out)
}
