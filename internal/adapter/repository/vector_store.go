package repository

import (
	"context"
	"fmt"

	"rag-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type pgVectorStore struct {
	pool *pgxpool.Pool
}

// NewPgVectorStore creates the Postgres-backed vector store.
func NewPgVectorStore(pool *pgxpool.Pool) domain.VectorStore {
	return &pgVectorStore{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (s *pgVectorStore) getExecutor(ctx context.Context) dbExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *pgVectorStore) Add(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = []interface{}{
			rec.ID,
			rec.Chunk.DocumentID,
			rec.Chunk.OwnerID,
			rec.Chunk.SourceID,
			rec.Chunk.Title,
			rec.Chunk.Page,
			string(rec.Chunk.ElementType),
			rec.Chunk.Caption,
			rec.Chunk.Content,
			rec.Embedding,
			rec.CreatedAt,
		}
	}

	_, err := s.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"rag_vectors"},
		[]string{"id", "document_id", "owner_id", "source_id", "title", "page", "element_type", "caption", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert vector records: %w", err)
	}
	return nil
}

func (s *pgVectorStore) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.VectorHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, document_id, owner_id, source_id, title, page, element_type, caption, content, embedding, created_at,
		       1 - (embedding <=> $1) AS score
		FROM rag_vectors
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit
	for rows.Next() {
		var hit domain.VectorHit
		var elementType string
		if err := rows.Scan(
			&hit.Record.ID,
			&hit.Record.Chunk.DocumentID,
			&hit.Record.Chunk.OwnerID,
			&hit.Record.Chunk.SourceID,
			&hit.Record.Chunk.Title,
			&hit.Record.Chunk.Page,
			&elementType,
			&hit.Record.Chunk.Caption,
			&hit.Record.Chunk.Content,
			&hit.Record.Embedding,
			&hit.Record.CreatedAt,
			&hit.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hit.Record.Chunk.ElementType = domain.ElementType(elementType)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (s *pgVectorStore) PurgeDocument(ctx context.Context, documentID string) error {
	_, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM rag_vectors WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to purge document vectors: %w", err)
	}
	return nil
}
