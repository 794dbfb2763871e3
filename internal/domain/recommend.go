package domain

import (
	"context"
	"time"
)

// RecommendationSource tells where a candidate was discovered.
type RecommendationSource string

const (
	SourceLocal RecommendationSource = "local"
	SourceArxiv RecommendationSource = "arxiv"
)

// Recommendation is a reranked candidate returned to the caller. Ephemeral,
// computed per request.
type Recommendation struct {
	ID         string
	Title      string
	Snippet    string
	Source     RecommendationSource
	Score      float64
	URL        string
	Year       int
	DocumentID string
}

// Identifier is the dedup key: candidates with the same (source, id) collapse
// to the first discovered one.
func (r Recommendation) Identifier() string {
	return string(r.Source) + ":" + r.ID
}

// ScholarResult is one hit from the external academic-search API.
type ScholarResult struct {
	ID        string
	Title     string
	Summary   string
	Link      string
	PDFLink   string
	Published time.Time
}

// ScholarClient defines the external academic-search collaborator,
// queried by keyword with a recent-publication date filter.
type ScholarClient interface {
	Search(ctx context.Context, keywords []string, maxResults int) ([]ScholarResult, error)
}
