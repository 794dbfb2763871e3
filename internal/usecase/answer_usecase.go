package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-engine/internal/domain"
)

// NoContextAnswer is returned verbatim when retrieval finds nothing; the
// generative model is never consulted in that case.
const NoContextAnswer = "No relevant information was found in the indexed documents."

// DefaultVerificationThreshold is the composite score an answer must reach
// to be validated when the caller does not pick a threshold.
const DefaultVerificationThreshold = 0.7

// AskInput is one question against the indexed corpus.
type AskInput struct {
	Question         string
	Identity         string
	Filters          *RetrieveFilters
	WantVerification bool
	Threshold        float64
	MaxTokens        int
}

// AskOutput is the normalized answer envelope returned to API clients.
type AskOutput struct {
	Answer   string
	Status   domain.AnswerStatus
	Score    float64
	Report   *domain.VerificationReport
	Contexts []ContextItem
	Reason   string
}

// AnswerUsecase generates a grounded answer for a question, replaying recent
// conversation turns and optionally driving the result through verification.
type AnswerUsecase interface {
	Execute(ctx context.Context, input AskInput) (*AskOutput, error)
}

type answerUsecase struct {
	retriever        RetrieveContextUsecase
	promptBuilder    PromptBuilder
	generator        domain.LLMClient
	verifier         VerifyAnswerUsecase
	memory           domain.ConversationStore
	maxTokens        int
	defaultThreshold float64
}

// NewAnswerUsecase wires the answer pipeline. defaultThreshold is the
// validation threshold applied when the caller does not pick one; values
// outside (0,1] fall back to DefaultVerificationThreshold.
func NewAnswerUsecase(
	retriever RetrieveContextUsecase,
	promptBuilder PromptBuilder,
	generator domain.LLMClient,
	verifier VerifyAnswerUsecase,
	memory domain.ConversationStore,
	maxTokens int,
	defaultThreshold float64,
) AnswerUsecase {
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = DefaultVerificationThreshold
	}
	return &answerUsecase{
		retriever:        retriever,
		promptBuilder:    promptBuilder,
		generator:        generator,
		verifier:         verifier,
		memory:           memory,
		maxTokens:        maxTokens,
		defaultThreshold: defaultThreshold,
	}
}

func (u *answerUsecase) Execute(ctx context.Context, input AskInput) (*AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	history := u.recentHistory(ctx, input.Identity)

	retrieved, err := u.retriever.Execute(ctx, RetrieveContextInput{
		Query:   question,
		Filters: input.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(retrieved.Contexts) == 0 {
		output := &AskOutput{
			Answer: NoContextAnswer,
			Status: domain.StatusNoContext,
		}
		u.remember(ctx, input.Identity, question, output.Answer)
		return output, nil
	}

	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = u.maxTokens
	}

	messages := u.promptBuilder.BuildAnswerMessages(question, history, retrieved.Contexts)
	resp, err := u.generator.Chat(ctx, messages, maxTokens)
	if err != nil {
		slog.Error("answer_generation_failed", slog.String("error", err.Error()))
		return &AskOutput{
			Status:   domain.StatusError,
			Reason:   err.Error(),
			Contexts: retrieved.Contexts,
		}, nil
	}

	answer := StripThinkBlocks(resp.Text)
	output := &AskOutput{
		Answer:   answer,
		Status:   domain.StatusGenerated,
		Contexts: retrieved.Contexts,
	}

	if input.WantVerification {
		threshold := input.Threshold
		if threshold <= 0 || threshold > 1 {
			threshold = u.defaultThreshold
		}
		verified, err := u.verifier.Execute(ctx, question, retrieved.Contexts, answer, threshold)
		if err != nil {
			return nil, fmt.Errorf("verification failed: %w", err)
		}
		output.Answer = verified.Answer
		output.Status = verified.Status
		output.Score = verified.Report.Composite
		output.Report = &verified.Report
		output.Contexts = verified.Contexts
	}

	u.remember(ctx, input.Identity, question, output.Answer)
	return output, nil
}

// recentHistory loads the prompt replay window. Memory failures are logged
// and treated as an empty history.
func (u *answerUsecase) recentHistory(ctx context.Context, identity string) []domain.ConversationTurn {
	if identity == "" {
		return nil
	}
	history, err := u.memory.Recent(ctx, identity, domain.MemoryWindow)
	if err != nil {
		slog.Warn("conversation_history_load_failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return history
}

// remember appends the exchange and prunes the log to its cap, best effort.
func (u *answerUsecase) remember(ctx context.Context, identity, question, answer string) {
	if identity == "" {
		return
	}
	turn := domain.ConversationTurn{
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if err := u.memory.Append(ctx, identity, turn); err != nil {
		slog.Warn("conversation_append_failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := u.memory.Prune(ctx, identity, domain.MaxConversationTurns); err != nil {
		slog.Warn("conversation_prune_failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
	}
}
