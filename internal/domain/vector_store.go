package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// VectorRecord is a persisted chunk embedding. Created at ingestion, never
// mutated; removed only by purging all records of its document.
type VectorRecord struct {
	ID        uuid.UUID
	Chunk     DocumentChunk
	Embedding pgvector.Vector
	CreatedAt time.Time
}

// VectorHit is a chunk found via similarity search. The embedding is carried
// along so selection policies (MMR) can measure diversity without re-encoding.
type VectorHit struct {
	Record VectorRecord
	Score  float32
}

// VectorStore defines the persisted dense-embedding index over document chunks.
type VectorStore interface {
	// Add inserts records in bulk. Honors a transaction injected in ctx.
	Add(ctx context.Context, records []VectorRecord) error

	// Search returns the limit nearest records by cosine similarity,
	// best first. An empty store yields an empty slice, not an error.
	Search(ctx context.Context, queryVector []float32, limit int) ([]VectorHit, error)

	// PurgeDocument removes every record belonging to the document.
	// Re-ingestion replaces a document's records instead of appending to them.
	PurgeDocument(ctx context.Context, documentID string) error
}

// VectorEncoder defines the interface for generating embeddings.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// CosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is zero or the dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
