// Package search wraps the Tavily web search API as the engine's
// search provider. Results are normalized into source documents;
// deduplication is left to the caller.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/openloop/pkg/agent"
)

const defaultBaseURL = "https://api.tavily.com/search"

// Client calls the Tavily search API.
type Client struct {
	APIKey string

	// Depth controls Tavily's search_depth parameter (basic or advanced).
	Depth string

	// MaxResults caps the documents returned per query. Defaults to 5.
	MaxResults int

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	HTTPClient *http.Client
}

// NewClient constructs a Tavily client with advanced search depth.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		Depth:      "advanced",
		MaxResults: 5,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilyResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content"`
}

// Search posts a query to Tavily and returns the ranked results.
func (c *Client) Search(ctx context.Context, query string) ([]agent.SourceDocument, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	depth := c.Depth
	if depth == "" {
		depth = "basic"
	}
	maxResults := c.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(map[string]any{
		"query":               query,
		"api_key":             c.APIKey,
		"search_depth":        depth,
		"max_results":         maxResults,
		"include_raw_content": true,
	})
	if err != nil {
		return nil, err
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: http %d", resp.StatusCode)
	}

	var response struct {
		Results []tavilyResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	docs := make([]agent.SourceDocument, 0, len(response.Results))
	for _, r := range response.Results {
		if r.URL == "" {
			continue
		}
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		docs = append(docs, agent.SourceDocument{
			URL:     r.URL,
			Title:   r.Title,
			Content: content,
		})
		if len(docs) >= maxResults {
			break
		}
	}
	return docs, nil
}
