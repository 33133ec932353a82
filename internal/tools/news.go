package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/solpilot/solpilot/internal/schema"
)

const newsUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"

// MarketNewsTool searches for recent market news on a token or topic and
// extracts readable article text for the model to summarise.
type MarketNewsTool struct {
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewMarketNewsTool creates a MarketNewsTool. apiKey is the Brave Search
// key; maxResults defaults to 5.
func NewMarketNewsTool(apiKey string, maxResults int) *MarketNewsTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &MarketNewsTool{
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *MarketNewsTool) Name() string { return string(ToolMarketNews) }
func (t *MarketNewsTool) Description() string {
	return "Search recent crypto market news for a token or topic and return article extracts."
}
func (t *MarketNewsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Token or topic to search news for, e.g. 'Solana SOL'"
			},
			"limit": {
				"type": "integer",
				"description": "How many articles (1-5)",
				"minimum": 1,
				"maximum": 5
			}
		},
		"required": ["query"]
	}`)
}

func (t *MarketNewsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.apiKey == "" {
		return schema.Failure(schema.ErrUnknown, "news search is not configured on this server"), nil
	}
	query := stringParam(params, "query", "")
	if query == "" {
		return schema.Failure(schema.ErrValidation, "query is required"), nil
	}
	limit := intParam(params, "limit", t.maxResults)
	if limit < 1 {
		limit = 1
	}
	if limit > 5 {
		limit = 5
	}

	results, err := t.search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return schema.Success(map[string]any{
			"query":    query,
			"articles": []any{},
		}), nil
	}

	type article struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Excerpt string `json:"excerpt"`
	}
	articles := make([]article, 0, len(results))
	for _, r := range results {
		excerpt := r.Description
		// Pull readable body text; fall back to the search snippet.
		if text := t.extract(ctx, r.URL); text != "" {
			excerpt = text
		}
		articles = append(articles, article{Title: r.Title, URL: r.URL, Excerpt: excerpt})
	}

	return schema.Success(map[string]any{
		"query":    query,
		"articles": articles,
	}), nil
}

type newsResult struct {
	Title       string
	URL         string
	Description string
}

func (t *MarketNewsTool) search(ctx context.Context, query string, limit int) ([]newsResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.search.brave.com/res/v1/news/search", nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", limit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("news search: rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news search HTTP %d", resp.StatusCode)
	}

	var data struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("parse news search response: %w", err)
	}

	out := make([]newsResult, 0, len(data.Results))
	for i, r := range data.Results {
		if i >= limit {
			break
		}
		out = append(out, newsResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return out, nil
}

// extract fetches a URL and returns the first part of its readable text.
// Failures return "" so one broken page never fails the whole tool.
func (t *MarketNewsTool) extract(ctx context.Context, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", newsUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return ""
	}
	text := article.TextContent
	if len(text) > 1200 {
		text = text[:1200] + "…"
	}
	return text
}
