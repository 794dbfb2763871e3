package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"rag-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgLexicalIndex struct {
	pool *pgxpool.Pool
}

// NewPgLexicalIndex creates the Postgres-backed lexical index.
func NewPgLexicalIndex(pool *pgxpool.Pool) domain.LexicalIndex {
	return &pgLexicalIndex{pool: pool}
}

func (l *pgLexicalIndex) getExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
} {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return l.pool
}

func (l *pgLexicalIndex) Put(ctx context.Context, entry domain.LexicalEntry) error {
	chunks, err := json.Marshal(entry.ChunkTexts)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk texts: %w", err)
	}
	images, err := json.Marshal(entry.ImageTexts)
	if err != nil {
		return fmt.Errorf("failed to marshal image texts: %w", err)
	}
	figures, err := json.Marshal(entry.FigureTexts)
	if err != nil {
		return fmt.Errorf("failed to marshal figure texts: %w", err)
	}

	query := `
		INSERT INTO rag_lexical_entries (document_id, owner_id, title, full_text, chunk_texts, image_texts, figure_texts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			full_text = EXCLUDED.full_text,
			chunk_texts = EXCLUDED.chunk_texts,
			image_texts = EXCLUDED.image_texts,
			figure_texts = EXCLUDED.figure_texts,
			updated_at = EXCLUDED.updated_at
	`
	_, err = l.getExecutor(ctx).Exec(ctx, query,
		entry.DocumentID, entry.OwnerID, entry.Title, entry.FullText,
		chunks, images, figures, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lexical entry: %w", err)
	}
	return nil
}

func (l *pgLexicalIndex) Get(ctx context.Context, documentID string) (*domain.LexicalEntry, error) {
	query := `
		SELECT document_id, owner_id, title, full_text, chunk_texts, image_texts, figure_texts, updated_at
		FROM rag_lexical_entries
		WHERE document_id = $1
	`
	entry, err := scanEntry(l.getExecutor(ctx).QueryRow(ctx, query, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *pgLexicalIndex) Delete(ctx context.Context, documentID string) error {
	_, err := l.getExecutor(ctx).Exec(ctx, `DELETE FROM rag_lexical_entries WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete lexical entry: %w", err)
	}
	return nil
}

// Search loads every entry and ranks by keyword overlap in process. The
// corpus is one row per document, so a full scan stays cheap at this scale.
func (l *pgLexicalIndex) Search(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	rows, err := l.getExecutor(ctx).Query(ctx, `
		SELECT document_id, owner_id, title, full_text, chunk_texts, image_texts, figure_texts, updated_at
		FROM rag_lexical_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexical entries: %w", err)
	}
	defer rows.Close()

	var hits []domain.LexicalHit
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		score := domain.ScoreKeywordOverlap(query, entry.FullText)
		if score == 0 {
			continue
		}
		hits = append(hits, domain.LexicalHit{
			Entry:     *entry,
			Score:     score,
			BestChunk: domain.BestChunkByOverlap(query, entry.ChunkTexts),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (l *pgLexicalIndex) AllDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := l.getExecutor(ctx).Query(ctx, `SELECT document_id FROM rag_lexical_entries ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

func scanEntry(row pgx.Row) (*domain.LexicalEntry, error) {
	var entry domain.LexicalEntry
	var chunks, images, figures []byte
	if err := row.Scan(
		&entry.DocumentID, &entry.OwnerID, &entry.Title, &entry.FullText,
		&chunks, &images, &figures, &entry.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan lexical entry: %w", err)
	}
	if err := json.Unmarshal(chunks, &entry.ChunkTexts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk texts: %w", err)
	}
	if err := json.Unmarshal(images, &entry.ImageTexts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image texts: %w", err)
	}
	if err := json.Unmarshal(figures, &entry.FigureTexts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal figure texts: %w", err)
	}
	return &entry, nil
}
