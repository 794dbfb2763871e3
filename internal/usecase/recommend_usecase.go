package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rag-engine/internal/domain"
)

// Recommendation ranking weights. Local documents outrank external papers at
// equal similarity; fresh arXiv papers get a recency boost.
const (
	weightLocalSource = 1.0
	weightArxivSource = 0.6

	recencyBonusCurrentYear  = 1.0
	recencyBonusPreviousYear = 0.8

	semanticBonusFactor = 2.0

	recommendQueryMaxRunes = 1000
	maxExtractedKeywords   = 5
)

// DefaultRecommendations is how many recommendations a request gets when the
// caller does not ask for a count.
const DefaultRecommendations = 3

// RecommendInput asks for related material for a piece of text, typically a
// document the caller is reading.
type RecommendInput struct {
	Text              string
	N                 int
	ExcludeDocumentID string
}

// RecommendOutput carries the reranked recommendations, best first.
type RecommendOutput struct {
	Recommendations []domain.Recommendation
}

// RecommendUsecase fans out to the local indices and the external academic
// search, then merges, dedupes and reranks the candidates.
type RecommendUsecase interface {
	Execute(ctx context.Context, input RecommendInput) (*RecommendOutput, error)
}

type recommendUsecase struct {
	encoder   domain.VectorEncoder
	vectors   domain.VectorStore
	lexical   domain.LexicalIndex
	scholar   domain.ScholarClient
	generator domain.LLMClient
	defaultN  int
}

// NewRecommendUsecase wires the recommendation engine. defaultN is the result
// count used when the caller does not ask for one; non-positive values fall
// back to DefaultRecommendations.
func NewRecommendUsecase(
	encoder domain.VectorEncoder,
	vectors domain.VectorStore,
	lexical domain.LexicalIndex,
	scholar domain.ScholarClient,
	generator domain.LLMClient,
	defaultN int,
) RecommendUsecase {
	if defaultN <= 0 {
		defaultN = DefaultRecommendations
	}
	return &recommendUsecase{
		encoder:   encoder,
		vectors:   vectors,
		lexical:   lexical,
		scholar:   scholar,
		generator: generator,
		defaultN:  defaultN,
	}
}

func (u *recommendUsecase) Execute(ctx context.Context, input RecommendInput) (*RecommendOutput, error) {
	query := truncateRunes(strings.TrimSpace(input.Text), recommendQueryMaxRunes)
	if query == "" {
		return nil, fmt.Errorf("text is required")
	}
	n := input.N
	if n <= 0 {
		n = u.defaultN
	}

	queryVec, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	// Each source fails independently; a broken source just contributes
	// nothing to the candidate pool.
	var vectorCands, lexicalCands, scholarCands []domain.Recommendation
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cands, err := u.vectorCandidates(gctx, queryVec, n+5)
		if err != nil {
			slog.Warn("recommend_vector_source_failed", slog.String("error", err.Error()))
			return nil
		}
		vectorCands = cands
		return nil
	})
	g.Go(func() error {
		cands, err := u.lexicalCandidates(gctx, query, n)
		if err != nil {
			slog.Warn("recommend_lexical_source_failed", slog.String("error", err.Error()))
			return nil
		}
		lexicalCands = cands
		return nil
	})
	g.Go(func() error {
		cands, err := u.scholarCandidates(gctx, query, n*2)
		if err != nil {
			slog.Warn("recommend_scholar_source_failed", slog.String("error", err.Error()))
			return nil
		}
		scholarCands = cands
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := dedupeCandidates(vectorCands, lexicalCands, scholarCands)
	candidates = excludeDocument(candidates, input.ExcludeDocumentID)

	u.rerank(ctx, queryVec, candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return &RecommendOutput{Recommendations: candidates}, nil
}

func (u *recommendUsecase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := u.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed recommendation query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// vectorCandidates maps similar chunks to their documents, keeping the first
// chunk seen per document as the snippet.
func (u *recommendUsecase) vectorCandidates(ctx context.Context, queryVec []float32, limit int) ([]domain.Recommendation, error) {
	hits, err := u.vectors.Search(ctx, queryVec, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var cands []domain.Recommendation
	for _, hit := range hits {
		docID := hit.Record.Chunk.DocumentID
		if docID == "" || seen[docID] {
			continue
		}
		seen[docID] = true
		cands = append(cands, domain.Recommendation{
			ID:         docID,
			Title:      hit.Record.Chunk.Title,
			Snippet:    truncateRunes(hit.Record.Chunk.Content, 300),
			Source:     domain.SourceLocal,
			DocumentID: docID,
		})
	}
	return cands, nil
}

func (u *recommendUsecase) lexicalCandidates(ctx context.Context, query string, limit int) ([]domain.Recommendation, error) {
	hits, err := u.lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	cands := make([]domain.Recommendation, 0, len(hits))
	for _, hit := range hits {
		snippet := hit.BestChunk
		if snippet == "" {
			snippet = truncateRunes(hit.Entry.FullText, 300)
		}
		cands = append(cands, domain.Recommendation{
			ID:         hit.Entry.DocumentID,
			Title:      hit.Entry.Title,
			Snippet:    truncateRunes(snippet, 300),
			Source:     domain.SourceLocal,
			DocumentID: hit.Entry.DocumentID,
		})
	}
	return cands, nil
}

// scholarCandidates extracts keywords with the generator model, queries the
// academic search, and keeps papers from the last two calendar years.
func (u *recommendUsecase) scholarCandidates(ctx context.Context, query string, limit int) ([]domain.Recommendation, error) {
	keywords, err := u.extractKeywords(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	results, err := u.scholar.Search(ctx, keywords, limit)
	if err != nil {
		return nil, err
	}

	currentYear := time.Now().Year()
	var cands []domain.Recommendation
	for _, result := range results {
		year := result.Published.Year()
		if year < currentYear-1 {
			continue
		}
		cands = append(cands, domain.Recommendation{
			ID:      result.ID,
			Title:   result.Title,
			Snippet: truncateRunes(result.Summary, 300),
			Source:  domain.SourceArxiv,
			URL:     result.Link,
			Year:    year,
		})
	}
	return cands, nil
}

func (u *recommendUsecase) extractKeywords(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Extract up to %d short English search keywords from the following text. Reply with the keywords only, comma-separated, no other text.\n\nText: %s",
		maxExtractedKeywords, query,
	)
	resp, err := u.generator.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, 100)
	if err != nil {
		return nil, fmt.Errorf("keyword extraction failed: %w", err)
	}

	var keywords []string
	for _, part := range strings.Split(StripThinkBlocks(resp.Text), ",") {
		kw := strings.TrimSpace(part)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) >= maxExtractedKeywords {
			break
		}
	}
	return keywords, nil
}

// rerank scores candidates in place: source weight, recency bonus for papers,
// and a semantic bonus from the snippet's cosine similarity to the query.
func (u *recommendUsecase) rerank(ctx context.Context, queryVec []float32, candidates []domain.Recommendation) {
	currentYear := time.Now().Year()

	snippets := make([]string, len(candidates))
	for i, c := range candidates {
		snippets[i] = c.Snippet
	}
	snippetVecs, err := u.encoder.Encode(ctx, snippets)
	if err != nil || len(snippetVecs) != len(candidates) {
		if err != nil {
			slog.Warn("recommend_snippet_embed_failed", slog.String("error", err.Error()))
		}
		snippetVecs = nil
	}

	for i := range candidates {
		score := weightLocalSource
		if candidates[i].Source == domain.SourceArxiv {
			score = weightArxivSource
			switch candidates[i].Year {
			case currentYear:
				score += recencyBonusCurrentYear
			case currentYear - 1:
				score += recencyBonusPreviousYear
			}
		}
		if snippetVecs != nil {
			score += semanticBonusFactor * domain.CosineSimilarity(queryVec, snippetVecs[i])
		}
		candidates[i].Score = score
	}
}

// dedupeCandidates concatenates the source pools in discovery order and drops
// later candidates that share an identifier with an earlier one.
func dedupeCandidates(pools ...[]domain.Recommendation) []domain.Recommendation {
	seen := make(map[string]bool)
	var merged []domain.Recommendation
	for _, pool := range pools {
		for _, cand := range pool {
			key := cand.Identifier()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, cand)
		}
	}
	return merged
}

func excludeDocument(candidates []domain.Recommendation, documentID string) []domain.Recommendation {
	if documentID == "" {
		return candidates
	}
	filtered := candidates[:0]
	for _, cand := range candidates {
		if cand.DocumentID == documentID {
			continue
		}
		filtered = append(filtered, cand)
	}
	return filtered
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
