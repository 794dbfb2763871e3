package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"rag-engine/internal/domain"
)

// CachedEmbedder wraps a VectorEncoder with an in-process LRU so repeated
// queries and re-ingested chunks skip the round trip to the model server.
type CachedEmbedder struct {
	inner domain.VectorEncoder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner domain.VectorEncoder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(c.inner.Version(), text)); ok {
			results[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		slog.Debug("embed_cache_all_hits", slog.Int("text_count", len(texts)))
		return results, nil
	}

	encoded, err := c.inner.Encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range encoded {
		i := missIdx[j]
		results[i] = vec
		c.cache.Add(cacheKey(c.inner.Version(), texts[i]), vec)
	}

	slog.Debug("embed_cache_lookup",
		slog.Int("hits", len(texts)-len(missTexts)),
		slog.Int("misses", len(missTexts)),
	)

	return results, nil
}

func (c *CachedEmbedder) Version() string {
	return c.inner.Version()
}

var _ domain.VectorEncoder = (*CachedEmbedder)(nil)
