package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase/retrieval"
)

// RetrieveFilters narrows retrieval to chunks with exactly matching metadata.
type RetrieveFilters struct {
	OwnerID    string
	DocumentID string
}

// RetrieveContextInput carries one retrieval request.
type RetrieveContextInput struct {
	Query   string
	Filters *RetrieveFilters
	K       int
}

// ContextItem is one retrieved chunk with its similarity score.
type ContextItem struct {
	Chunk domain.DocumentChunk
	Score float64
}

// RetrieveContextOutput holds the selected context, best first.
type RetrieveContextOutput struct {
	Contexts []ContextItem
}

// RetrieveContextUsecase selects document context for a query. The default
// path diversifies results with maximal marginal relevance; Supplement is the
// plain broad similarity search used to widen thin context.
type RetrieveContextUsecase interface {
	Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error)
	Supplement(ctx context.Context, query string, k int) ([]ContextItem, error)
}

// RetrieverConfig tunes over-fetch sizes and the MMR trade-off.
type RetrieverConfig struct {
	TopK             int
	FetchK           int
	MMRLambda        float64
	FilterMultiplier int
}

type retrieveContextUsecase struct {
	encoder domain.VectorEncoder
	store   domain.VectorStore
	cfg     RetrieverConfig
}

// NewRetrieveContextUsecase wires the retriever over the encoder and store.
func NewRetrieveContextUsecase(encoder domain.VectorEncoder, store domain.VectorStore, cfg RetrieverConfig) RetrieveContextUsecase {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.FetchK <= 0 {
		cfg.FetchK = 20
	}
	if cfg.MMRLambda <= 0 || cfg.MMRLambda > 1 {
		cfg.MMRLambda = 0.6
	}
	if cfg.FilterMultiplier <= 0 {
		cfg.FilterMultiplier = 3
	}
	return &retrieveContextUsecase{
		encoder: encoder,
		store:   store,
		cfg:     cfg,
	}
}

func (u *retrieveContextUsecase) Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	k := input.K
	if k <= 0 {
		k = u.cfg.TopK
	}

	queryVec, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var contexts []ContextItem
	if input.Filters != nil && (input.Filters.OwnerID != "" || input.Filters.DocumentID != "") {
		contexts, err = u.filteredSearch(ctx, queryVec, *input.Filters, k)
	} else {
		contexts, err = u.mmrSearch(ctx, queryVec, k)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("context_retrieved",
		slog.Int("context_count", len(contexts)),
		slog.Bool("filtered", input.Filters != nil),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &RetrieveContextOutput{Contexts: contexts}, nil
}

// Supplement runs one unfiltered similarity search without MMR reordering.
func (u *retrieveContextUsecase) Supplement(ctx context.Context, query string, k int) ([]ContextItem, error) {
	queryVec, err := u.embedQuery(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}

	hits, err := u.store.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("supplementary search failed: %w", err)
	}
	return hitsToContexts(hits), nil
}

func (u *retrieveContextUsecase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := u.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// mmrSearch over-fetches FetchK nearest hits and diversifies down to k.
func (u *retrieveContextUsecase) mmrSearch(ctx context.Context, queryVec []float32, k int) ([]ContextItem, error) {
	hits, err := u.store.Search(ctx, queryVec, u.cfg.FetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	candidates := make([]retrieval.Candidate, len(hits))
	for i, hit := range hits {
		candidates[i] = retrieval.Candidate{
			Embedding: hit.Record.Embedding.Slice(),
			Relevance: float64(hit.Score),
		}
	}

	selected := retrieval.SelectMMR(candidates, k, u.cfg.MMRLambda)
	contexts := make([]ContextItem, 0, len(selected))
	for _, idx := range selected {
		contexts = append(contexts, ContextItem{
			Chunk: hits[idx].Record.Chunk,
			Score: float64(hits[idx].Score),
		})
	}
	return contexts, nil
}

// filteredSearch over-fetches k times the filter multiplier and keeps the
// hits whose metadata matches exactly, stopping at k.
func (u *retrieveContextUsecase) filteredSearch(ctx context.Context, queryVec []float32, filters RetrieveFilters, k int) ([]ContextItem, error) {
	hits, err := u.store.Search(ctx, queryVec, k*u.cfg.FilterMultiplier)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var contexts []ContextItem
	for _, hit := range hits {
		if filters.OwnerID != "" && hit.Record.Chunk.OwnerID != filters.OwnerID {
			continue
		}
		if filters.DocumentID != "" && hit.Record.Chunk.DocumentID != filters.DocumentID {
			continue
		}
		contexts = append(contexts, ContextItem{
			Chunk: hit.Record.Chunk,
			Score: float64(hit.Score),
		})
		if len(contexts) >= k {
			break
		}
	}
	return contexts, nil
}

func hitsToContexts(hits []domain.VectorHit) []ContextItem {
	contexts := make([]ContextItem, len(hits))
	for i, hit := range hits {
		contexts[i] = ContextItem{
			Chunk: hit.Record.Chunk,
			Score: float64(hit.Score),
		}
	}
	return contexts
}
