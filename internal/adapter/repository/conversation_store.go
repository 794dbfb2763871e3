package repository

import (
	"context"
	"fmt"

	"rag-engine/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgConversationStore struct {
	pool *pgxpool.Pool
}

// NewPgConversationStore creates the Postgres-backed conversation log.
func NewPgConversationStore(pool *pgxpool.Pool) domain.ConversationStore {
	return &pgConversationStore{pool: pool}
}

func (s *pgConversationStore) Append(ctx context.Context, identity string, turn domain.ConversationTurn) error {
	query := `
		INSERT INTO rag_conversation_turns (identity, question, answer, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, identity, turn.Question, turn.Answer, turn.CreatedAt); err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Recent returns the newest n turns in chronological order, so the prompt
// window always reads oldest first.
func (s *pgConversationStore) Recent(ctx context.Context, identity string, n int) ([]domain.ConversationTurn, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `
		SELECT question, answer, created_at
		FROM (
			SELECT id, question, answer, created_at
			FROM rag_conversation_turns
			WHERE identity = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query, identity, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		if err := rows.Scan(&t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return turns, nil
}

// Prune drops everything but the newest max turns, oldest first.
func (s *pgConversationStore) Prune(ctx context.Context, identity string, max int) error {
	query := `
		DELETE FROM rag_conversation_turns
		WHERE identity = $1
		AND id NOT IN (
			SELECT id FROM rag_conversation_turns
			WHERE identity = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`
	if _, err := s.pool.Exec(ctx, query, identity, max); err != nil {
		return fmt.Errorf("failed to prune conversation turns: %w", err)
	}
	return nil
}

func (s *pgConversationStore) Clear(ctx context.Context, identity string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rag_conversation_turns WHERE identity = $1`, identity); err != nil {
		return fmt.Errorf("failed to clear conversation memory: %w", err)
	}
	return nil
}
