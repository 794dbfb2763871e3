package domain

import (
	"context"
	"strings"
	"time"
)

// LexicalEntry is the raw-text record kept per document for keyword search.
// One entry per document; overwritten wholesale on re-ingestion.
type LexicalEntry struct {
	DocumentID  string
	OwnerID     string
	Title       string
	FullText    string
	ChunkTexts  []string
	ImageTexts  []string
	FigureTexts []string
	UpdatedAt   time.Time
}

// LexicalHit is a keyword-overlap match against a lexical entry.
type LexicalHit struct {
	Entry     LexicalEntry
	Score     int
	BestChunk string
}

// LexicalIndex defines the persisted key→record table backing keyword search.
type LexicalIndex interface {
	// Put stores or replaces the entry for its document id.
	// Honors a transaction injected in ctx.
	Put(ctx context.Context, entry LexicalEntry) error

	// Get returns the entry for the document, or nil, nil when absent.
	Get(ctx context.Context, documentID string) (*LexicalEntry, error)

	// Delete removes the entry for the document.
	Delete(ctx context.Context, documentID string) error

	// Search returns up to limit entries ranked by keyword overlap with the
	// query, highest overlap first. Entries with zero overlap are omitted.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// AllDocumentIDs lists every indexed document id, for reindexing.
	AllDocumentIDs(ctx context.Context) ([]string, error)
}

// ScoreKeywordOverlap counts how many of the query's keywords occur in text,
// case-insensitively. This is the lexical ranking function.
func ScoreKeywordOverlap(query, text string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, keyword := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(lowered, keyword) {
			score++
		}
	}
	return score
}

// BestChunkByOverlap returns the chunk with the highest keyword overlap,
// or "" when no chunk matches at all.
func BestChunkByOverlap(query string, chunks []string) string {
	best := ""
	bestScore := 0
	for _, chunk := range chunks {
		if s := ScoreKeywordOverlap(query, chunk); s > bestScore {
			bestScore = s
			best = chunk
		}
	}
	return best
}
