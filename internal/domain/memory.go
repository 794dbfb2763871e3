package domain

import (
	"context"
	"time"
)

const (
	// MaxConversationTurns caps the persisted log per identity.
	// The oldest turns are evicted first once the cap is reached.
	MaxConversationTurns = 50
	// MemoryWindow is how many recent turns are replayed into the prompt.
	MemoryWindow = 5
)

// ConversationTurn is one question/answer exchange. Append-only per identity.
type ConversationTurn struct {
	Question  string
	Answer    string
	CreatedAt time.Time
}

// ConversationStore persists the bounded per-identity conversation log.
// Durability is best-effort: callers log store failures and keep answering.
type ConversationStore interface {
	// Append adds a turn to the identity's log.
	Append(ctx context.Context, identity string, turn ConversationTurn) error

	// Recent returns the most recent n turns in chronological order,
	// oldest of the window first.
	Recent(ctx context.Context, identity string, n int) ([]ConversationTurn, error)

	// Prune drops the oldest turns beyond max for the identity.
	Prune(ctx context.Context, identity string, max int) error

	// Clear removes the identity's entire log.
	Clear(ctx context.Context, identity string) error
}
