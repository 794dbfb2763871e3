package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rag-engine/internal/domain"
	"rag-engine/internal/infra/httpclient"
)

// Client queries the arXiv Atom API for recent papers matching keywords.
// Requests are rate limited because arXiv throttles aggressive callers.
type Client struct {
	BaseURL string
	Client  *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, timeoutSeconds int) *Client {
	timeout := 15 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  httpclient.NewPooledClient(timeout),
		// arXiv asks for no more than one request every three seconds.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

func (c *Client) Search(ctx context.Context, keywords []string, maxResults int) ([]domain.ScholarResult, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	terms := make([]string, len(keywords))
	for i, kw := range keywords {
		terms[i] = fmt.Sprintf("all:%q", kw)
	}
	query := strings.Join(terms, " AND ")

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	reqURL := fmt.Sprintf("%s/api/query?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arxiv request: %w", err)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		slog.Warn("arxiv_search_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("failed to call arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv returned %d: %s", resp.StatusCode, string(body))
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	results := make([]domain.ScholarResult, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		results = append(results, domain.ScholarResult{
			ID:        arxivID(entry.ID),
			Title:     collapseWhitespace(entry.Title),
			Summary:   collapseWhitespace(entry.Summary),
			Link:      entry.ID,
			PDFLink:   pdfLink(entry.Links),
			Published: parsePublished(entry.Published),
		})
	}

	slog.Info("arxiv_search_completed",
		slog.Int("result_count", len(results)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return results, nil
}

// arxivID strips the abs URL prefix, e.g.
// "http://arxiv.org/abs/2401.01234v2" -> "2401.01234v2".
func arxivID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

func pdfLink(links []atomLink) string {
	for _, l := range links {
		if l.Title == "pdf" {
			return l.Href
		}
	}
	return ""
}

func parsePublished(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// collapseWhitespace normalizes the newline-folded text arXiv returns.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ domain.ScholarClient = (*Client)(nil)
