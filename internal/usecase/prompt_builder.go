package usecase

import (
	"fmt"
	"strings"

	"rag-engine/internal/domain"
)

const answerSystemPrompt = `You are a careful assistant that answers strictly from the provided document context.
Rules:
- Use only the information in the context below. Never fabricate facts.
- Keep continuity with the conversation history when the question refers to it.
- Answer in the same language as the question.
- If the context does not contain the answer, say so plainly.`

// PromptBuilder assembles the chat messages sent to the generative model.
type PromptBuilder interface {
	BuildAnswerMessages(question string, history []domain.ConversationTurn, contexts []ContextItem) []domain.Message
	BuildCorrectionMessages(question string, contexts []ContextItem, originalAnswer, critique string) []domain.Message
}

type promptBuilder struct{}

func NewPromptBuilder() PromptBuilder {
	return &promptBuilder{}
}

func (b *promptBuilder) BuildAnswerMessages(question string, history []domain.ConversationTurn, contexts []ContextItem) []domain.Message {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Document context:\n")
	for i, item := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, formatContextChunk(item.Chunk))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Question: %s", question)

	return []domain.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func (b *promptBuilder) BuildCorrectionMessages(question string, contexts []ContextItem, originalAnswer, critique string) []domain.Message {
	var sb strings.Builder

	sb.WriteString("Document context:\n")
	for i, item := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, formatContextChunk(item.Chunk))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	fmt.Fprintf(&sb, "A previous answer was judged insufficient:\n%s\n\n", originalAnswer)
	fmt.Fprintf(&sb, "Reviewer feedback:\n%s\n\n", critique)
	sb.WriteString("Write an improved answer that addresses the feedback, using only the document context.")

	return []domain.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// formatContextChunk tags non-text chunks with their element type and caption
// so the model can tell extracted visual descriptions from body text.
func formatContextChunk(chunk domain.DocumentChunk) string {
	if chunk.ElementType == domain.ElementText || chunk.ElementType == "" {
		return chunk.Content
	}
	tag := strings.ToUpper(string(chunk.ElementType))
	if chunk.Caption != "" {
		return fmt.Sprintf("(%s: %s) %s", tag, chunk.Caption, chunk.Content)
	}
	return fmt.Sprintf("(%s) %s", tag, chunk.Content)
}
