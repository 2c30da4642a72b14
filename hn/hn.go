package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// BaseURL is the Algolia Hacker News search API.
const BaseURL = "https://hn.algolia.com/api/v1"

// Hit is one story or comment returned by a search.
type Hit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	URL         string `json:"url"`
	StoryURL    string `json:"story_url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAt   string `json:"created_at"`
	StoryText   string `json:"story_text"`
	CommentText string `json:"comment_text"`
}

// SearchResult is one page of hits.
type SearchResult struct {
	Hits        []Hit `json:"hits"`
	Page        int   `json:"page"`
	NbPages     int   `json:"nbPages"`
	HitsPerPage int   `json:"hitsPerPage"`
}

// Client interface for HN search operations.
type Client interface {
	SearchByDate(ctx context.Context, query string, page, hitsPerPage int) (*SearchResult, error)
}

type httpClient struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a new HN search client with the given HTTP client.
func NewClient(client *http.Client) Client {
	return NewClientWithBaseURL(client, BaseURL)
}

// NewClientWithBaseURL creates a new HN search client with a custom base URL (for testing).
func NewClientWithBaseURL(client *http.Client, baseURL string) Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClient{
		client:  client,
		baseURL: baseURL,
	}
}

// SearchByDate returns the newest stories and comments matching query.
func (c *httpClient) SearchByDate(ctx context.Context, query string, page, hitsPerPage int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("hitsPerPage", strconv.Itoa(hitsPerPage))
	u := fmt.Sprintf("%s/search_by_date?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search page %d returned status %d", page, resp.StatusCode)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search page %d: %w", page, err)
	}

	return &result, nil
}
