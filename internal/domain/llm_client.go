package domain

import "context"

// Message is a single chat turn sent to an LLM endpoint.
type Message struct {
	Role    string
	Content string
}

// LLMResponse carries the LLM output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

// LLMClient defines the capability to send chat messages to an LLM and
// receive a textual response. Both the answer generator and the independent
// judge are LLMClients; they differ only in endpoint and model configuration.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	Version() string
}
