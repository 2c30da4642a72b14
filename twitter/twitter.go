package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/araddon/dateparse"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// BaseURL is the Twitter API v2 root.
const BaseURL = "https://api.twitter.com/2"

const maxRateLimitRetries = 3

// ErrRateLimited is returned when retries on HTTP 429 are exhausted.
var ErrRateLimited = errors.New("twitter: rate limited")

// Tweet is a single search result.
type Tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

// SearchPage is one page of recent search results.
type SearchPage struct {
	Data []Tweet `json:"data"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// Config configures the Twitter collector.
type Config struct {
	BearerToken string
	QueryTerms  []string // defaults to taxonomy.Keywords()
	Limit       int
	Pause       time.Duration // between pages and before retrying a 429
}

// Collector searches recent tweets mentioning tracked tools.
type Collector struct {
	client  *http.Client
	baseURL string
	cfg     Config
	sleep   func(context.Context, time.Duration) error
}

// NewCollector creates a Collector against the public API.
func NewCollector(client *http.Client, cfg Config) *Collector {
	return NewCollectorWithBaseURL(client, BaseURL, cfg)
}

// NewCollectorWithBaseURL creates a Collector with a custom base URL (for testing).
func NewCollectorWithBaseURL(client *http.Client, baseURL string, cfg Config) *Collector {
	if client == nil {
		client = http.DefaultClient
	}
	if len(cfg.QueryTerms) == 0 {
		cfg.QueryTerms = taxonomy.Keywords()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Collector{client: client, baseURL: baseURL, cfg: cfg, sleep: sleepCtx}
}

func (c *Collector) Name() string { return string(taxonomy.Twitter) }

// Collect pages through recent search until the limit is reached. Without a
// bearer token it returns nothing.
func (c *Collector) Collect(ctx context.Context) ([]mention.Mention, error) {
	if c.cfg.BearerToken == "" {
		slog.Info("twitter collection skipped: no bearer token")
		return nil, nil
	}

	query := taxonomy.Query(c.cfg.QueryTerms, 10)
	var out []mention.Mention
	next := ""

	for len(out) < c.cfg.Limit {
		page, err := c.Search(ctx, query, next)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("twitter search failed", "error", err, "collected", len(out))
			break
		}
		for _, tw := range page.Data {
			out = append(out, toMention(tw))
			if len(out) >= c.cfg.Limit {
				break
			}
		}
		next = page.Meta.NextToken
		if next == "" || len(out) >= c.cfg.Limit {
			break
		}
		if err := c.sleep(ctx, c.cfg.Pause); err != nil {
			return out, err
		}
	}

	slog.Info("twitter collection complete", "count", len(out))
	return out, nil
}

// Search fetches one page of recent tweets, retrying on HTTP 429.
func (c *Collector) Search(ctx context.Context, query, nextToken string) (*SearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", "100")
	params.Set("tweet.fields", "created_at,public_metrics,author_id,lang")
	if nextToken != "" {
		params.Set("next_token", nextToken)
	}
	u := fmt.Sprintf("%s/tweets/search/recent?%s", c.baseURL, params.Encode())

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating search request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("searching tweets: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= maxRateLimitRetries {
				return nil, ErrRateLimited
			}
			if err := c.sleep(ctx, c.cfg.Pause); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("tweet search returned status %d", resp.StatusCode)
		}

		var page SearchPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding tweet search: %w", err)
		}
		return &page, nil
	}
}

func toMention(tw Tweet) mention.Mention {
	created := time.Now().UTC()
	if tw.CreatedAt != "" {
		if t, err := dateparse.ParseIn(tw.CreatedAt, time.UTC); err == nil {
			created = t.UTC()
		}
	}
	m := mention.Mention{
		ID:        tw.ID,
		Source:    taxonomy.Twitter,
		Kind:      mention.KindTweet,
		Author:    tw.AuthorID,
		Text:      tw.Text,
		Lang:      tw.Lang,
		CreatedAt: created,
		Likes:     tw.PublicMetrics.LikeCount,
		Reposts:   tw.PublicMetrics.RetweetCount,
		Replies:   tw.PublicMetrics.ReplyCount,
		Quotes:    tw.PublicMetrics.QuoteCount,
	}
	m.Tag()
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
