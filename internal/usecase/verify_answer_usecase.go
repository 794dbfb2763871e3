package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"rag-engine/internal/domain"
)

const judgeUnavailableExplanation = "verification check could not be completed"

// correctionFeedbackCutoff decides which check explanations feed the
// correction prompt. Fixed, independent of the caller's validation threshold.
const correctionFeedbackCutoff = 0.7

var scorePattern = regexp.MustCompile(`\[SCORE:\s*([0-9]*\.?[0-9]+)\]`)

// VerifyAnswerOutput is the result of driving an answer through verification.
type VerifyAnswerOutput struct {
	Answer   string
	Status   domain.AnswerStatus
	Report   domain.VerificationReport
	Contexts []ContextItem
}

// VerifyAnswerUsecase scores an answer with an independent judge model and,
// when the composite falls short of the threshold, attempts one correction.
type VerifyAnswerUsecase interface {
	Execute(ctx context.Context, question string, contexts []ContextItem, answer string, threshold float64) (*VerifyAnswerOutput, error)
}

type verifyAnswerUsecase struct {
	judge             domain.LLMClient
	generator         domain.LLMClient
	retriever         RetrieveContextUsecase
	promptBuilder     PromptBuilder
	supplementalLimit int
	maxTokens         int
}

// NewVerifyAnswerUsecase wires the verification engine. The judge and the
// generator may be the same model behind different configurations.
func NewVerifyAnswerUsecase(
	judge domain.LLMClient,
	generator domain.LLMClient,
	retriever RetrieveContextUsecase,
	promptBuilder PromptBuilder,
	supplementalLimit int,
	maxTokens int,
) VerifyAnswerUsecase {
	if supplementalLimit <= 0 {
		supplementalLimit = 5
	}
	return &verifyAnswerUsecase{
		judge:             judge,
		generator:         generator,
		retriever:         retriever,
		promptBuilder:     promptBuilder,
		supplementalLimit: supplementalLimit,
		maxTokens:         maxTokens,
	}
}

func (u *verifyAnswerUsecase) Execute(ctx context.Context, question string, contexts []ContextItem, answer string, threshold float64) (*VerifyAnswerOutput, error) {
	contextRelevance := u.judgeCheck(ctx, contextRelevancePrompt(question, contexts))

	// Weak retrieval gets one chance to widen the context before the
	// answer-level checks run.
	if contextRelevance.Score <= domain.ComponentPassThreshold && u.retriever != nil {
		supplemental, err := u.retriever.Supplement(ctx, question, u.supplementalLimit)
		if err != nil {
			slog.Warn("supplementary_search_failed", slog.String("error", err.Error()))
		} else if added := mergeUnseenContexts(contexts, supplemental); len(added) > len(contexts) {
			contexts = added
			contextRelevance = u.judgeCheck(ctx, contextRelevancePrompt(question, contexts))
		}
	}

	faithfulness := u.judgeCheck(ctx, faithfulnessPrompt(question, contexts, answer))
	relevance := u.judgeCheck(ctx, answerRelevancePrompt(question, answer))

	report := domain.VerificationReport{
		ContextRelevance:   contextRelevance,
		AnswerFaithfulness: faithfulness,
		AnswerRelevance:    relevance,
		Composite:          domain.CompositeScore(contextRelevance.Score, faithfulness.Score, relevance.Score),
	}

	if report.Composite >= threshold {
		return &VerifyAnswerOutput{
			Answer:   answer,
			Status:   domain.StatusValidated,
			Report:   report,
			Contexts: contexts,
		}, nil
	}

	corrected, err := u.correct(ctx, question, contexts, answer, report)
	if err != nil || strings.TrimSpace(corrected) == "" {
		if err != nil {
			slog.Warn("answer_correction_failed", slog.String("error", err.Error()))
		}
		return &VerifyAnswerOutput{
			Answer:   answer,
			Status:   domain.StatusNeedsImprovement,
			Report:   report,
			Contexts: contexts,
		}, nil
	}

	return &VerifyAnswerOutput{
		Answer:   corrected,
		Status:   domain.StatusCorrected,
		Report:   report,
		Contexts: contexts,
	}, nil
}

// judgeCheck runs one scoring prompt. Judge failures and unparsable scores
// degrade to the neutral result so verification never errors the request.
func (u *verifyAnswerUsecase) judgeCheck(ctx context.Context, prompt string) domain.VerificationResult {
	resp, err := u.judge.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, u.maxTokens)
	if err != nil {
		slog.Warn("judge_call_failed", slog.String("error", err.Error()))
		return domain.NeutralResult(judgeUnavailableExplanation)
	}

	text := StripThinkBlocks(resp.Text)
	score, ok := parseJudgeScore(text)
	if !ok {
		slog.Warn("judge_score_unparsable", slog.String("judge_output", truncateForLog(text, 200)))
		return domain.NeutralResult(text)
	}

	return domain.VerificationResult{
		Score:       score,
		Passed:      score >= domain.ComponentPassThreshold,
		Explanation: text,
	}
}

func (u *verifyAnswerUsecase) correct(ctx context.Context, question string, contexts []ContextItem, answer string, report domain.VerificationReport) (string, error) {
	critique := buildCritique(report)
	messages := u.promptBuilder.BuildCorrectionMessages(question, contexts, answer, critique)

	resp, err := u.generator.Chat(ctx, messages, u.maxTokens)
	if err != nil {
		return "", fmt.Errorf("correction generation failed: %w", err)
	}
	return StripThinkBlocks(resp.Text), nil
}

// parseJudgeScore extracts the bracketed score and clamps it to [0,1].
func parseJudgeScore(text string) (float64, bool) {
	match := scorePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}

// buildCritique gathers the explanations of every check below the feedback
// cutoff.
func buildCritique(report domain.VerificationReport) string {
	var parts []string
	checks := []struct {
		name   string
		result domain.VerificationResult
	}{
		{"context relevance", report.ContextRelevance},
		{"answer faithfulness", report.AnswerFaithfulness},
		{"answer relevance", report.AnswerRelevance},
	}
	for _, check := range checks {
		if check.result.Score < correctionFeedbackCutoff && check.result.Explanation != "" {
			parts = append(parts, fmt.Sprintf("%s (%.1f): %s", check.name, check.result.Score, check.result.Explanation))
		}
	}
	return strings.Join(parts, "\n")
}

// mergeUnseenContexts appends supplemental items whose content is not already
// present, preserving the original ordering.
func mergeUnseenContexts(existing, supplemental []ContextItem) []ContextItem {
	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		seen[item.Chunk.Content] = true
	}
	merged := existing
	for _, item := range supplemental {
		if seen[item.Chunk.Content] {
			continue
		}
		seen[item.Chunk.Content] = true
		merged = append(merged, item)
	}
	return merged
}

func contextRelevancePrompt(question string, contexts []ContextItem) string {
	var sb strings.Builder
	sb.WriteString("Rate how relevant the following document context is to the question, from 0.0 (unrelated) to 1.0 (directly on topic).\n")
	sb.WriteString("Reply with the score in the exact form [SCORE: x.x] followed by a one-sentence justification.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nContext:\n%s", question, renderContexts(contexts))
	return sb.String()
}

func faithfulnessPrompt(question string, contexts []ContextItem, answer string) string {
	var sb strings.Builder
	sb.WriteString("Rate how faithful the answer is to the document context, from 0.0 (contradicts or invents facts) to 1.0 (fully grounded).\n")
	sb.WriteString("Reply with the score in the exact form [SCORE: x.x] followed by a one-sentence justification.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nContext:\n%s\n\nAnswer: %s", question, renderContexts(contexts), answer)
	return sb.String()
}

func answerRelevancePrompt(question, answer string) string {
	var sb strings.Builder
	sb.WriteString("Rate how well the answer addresses the question, from 0.0 (off topic) to 1.0 (complete and on point).\n")
	sb.WriteString("Reply with the score in the exact form [SCORE: x.x] followed by a one-sentence justification.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer: %s", question, answer)
	return sb.String()
}

func renderContexts(contexts []ContextItem) string {
	var sb strings.Builder
	for i, item := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, formatContextChunk(item.Chunk))
	}
	return sb.String()
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
