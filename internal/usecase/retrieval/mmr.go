package retrieval

import (
	"rag-engine/internal/domain"
)

// Candidate is one over-fetched hit considered for MMR selection.
type Candidate struct {
	Embedding []float32
	Relevance float64
}

// SelectMMR picks up to k candidate indices by maximal marginal relevance.
// lambda trades relevance against diversity: 1.0 is pure relevance ranking,
// 0.0 is pure diversity. Selection order is the returned order.
func SelectMMR(candidates []Candidate, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]int, 0, k)
	taken := make([]bool, len(candidates))

	// First pick is the most relevant candidate outright.
	first := argmaxRelevance(candidates)
	selected = append(selected, first)
	taken[first] = true

	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0
		for i := range candidates {
			if taken[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				sim := domain.CosineSimilarity(candidates[i].Embedding, candidates[s].Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}
			// Ties go to the earlier candidate, keeping selection deterministic.
			score := lambda*candidates[i].Relevance - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, bestIdx)
		taken[bestIdx] = true
	}

	return selected
}

func argmaxRelevance(candidates []Candidate) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Relevance > candidates[best].Relevance {
			best = i
		}
	}
	return best
}
