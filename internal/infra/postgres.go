package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PoolConfig holds tunable parameters for the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns int
	MinConns int
}

// NewPostgresDB creates a new PostgreSQL connection pool with pgvector types
// registered on every connection.
func NewPostgresDB(ctx context.Context, dsn string, opts ...PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(opts) > 0 && opts[0].MaxConns > 0 {
		config.MaxConns = int32(opts[0].MaxConns)
	} else {
		config.MaxConns = 10
	}
	if len(opts) > 0 && opts[0].MinConns > 0 {
		config.MinConns = int32(opts[0].MinConns)
	} else {
		config.MinConns = 2
	}

	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

// schema creates the persisted state on first start. All statements are
// idempotent so startup doubles as load-if-present/create-if-absent.
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS rag_vectors (
	id UUID PRIMARY KEY,
	document_id TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	source_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	page INT NOT NULL DEFAULT 0,
	element_type TEXT NOT NULL DEFAULT 'text',
	caption TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	embedding vector(768),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rag_vectors_document ON rag_vectors (document_id);

CREATE TABLE IF NOT EXISTS rag_lexical_entries (
	document_id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	full_text TEXT NOT NULL,
	chunk_texts JSONB NOT NULL DEFAULT '[]',
	image_texts JSONB NOT NULL DEFAULT '[]',
	figure_texts JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rag_conversation_turns (
	id BIGSERIAL PRIMARY KEY,
	identity TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rag_conversation_identity ON rag_conversation_turns (identity, id);

CREATE TABLE IF NOT EXISTS rag_reindex_jobs (
	id UUID PRIMARY KEY,
	document_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'new',
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rag_reindex_status ON rag_reindex_jobs (status, created_at);
`

// EnsureSchema applies the idempotent schema at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
