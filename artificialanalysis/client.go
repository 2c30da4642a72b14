package artificialanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aisentinel/cache"
)

// BaseURL is the ArtificialAnalysis data API root.
const BaseURL = "https://artificialanalysis.ai/api/v2"

const (
	maxRetries     = 3
	defaultBackoff = time.Second
	modelsCacheKey = "aa:llms:models"
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("artificialanalysis: AA_API_KEY is not set")
	// ErrInvalidAPIKey is returned on HTTP 401.
	ErrInvalidAPIKey = errors.New("artificialanalysis: invalid API key")
)

// RateLimitError is returned on HTTP 429 once retries are exhausted.
type RateLimitError struct {
	RetryAfter int // seconds
	Limit      int // requests per day
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("artificialanalysis: rate limit exceeded, retry after %d seconds (limit %d requests/day)", e.RetryAfter, e.Limit)
}

// Creator is the organisation behind a model.
type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ModelInfo is the technical profile of an LLM.
type ModelInfo struct {
	ID                            string             `json:"id"`
	Name                          string             `json:"name"`
	Slug                          string             `json:"slug"`
	ModelCreator                  *Creator           `json:"model_creator,omitempty"`
	Evaluations                   map[string]float64 `json:"evaluations,omitempty"`
	Pricing                       map[string]float64 `json:"pricing,omitempty"`
	MedianOutputTokensPerSecond   *float64           `json:"median_output_tokens_per_second,omitempty"`
	MedianTimeToFirstTokenSeconds *float64           `json:"median_time_to_first_token_seconds,omitempty"`
}

// CreatorName returns the creator's name, or "".
func (m ModelInfo) CreatorName() string {
	if m.ModelCreator == nil {
		return ""
	}
	return m.ModelCreator.Name
}

// MediaModel is an entry of a media leaderboard (image, video, speech).
type MediaModel struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	ModelCreator *Creator        `json:"model_creator,omitempty"`
	ELO          float64         `json:"elo"`
	Rank         int             `json:"rank"`
	Categories   json.RawMessage `json:"categories,omitempty"`
}

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseURL  string        // defaults to BaseURL
	CacheTTL time.Duration // lifetime of cached model lists
}

// Client talks to the ArtificialAnalysis API. Model lists are cached when a
// cache is supplied.
type Client struct {
	http    *http.Client
	cfg     Config
	cache   cache.Cache
	backoff time.Duration
}

// NewClient creates a Client. c may be nil to disable caching.
func NewClient(httpClient *http.Client, c cache.Cache, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Client{http: httpClient, cfg: cfg, cache: c, backoff: defaultBackoff}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// get fetches endpoint and decodes the data field of the response into out.
// GETs answered with 429 or 5xx are retried with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}

	u := c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var (
		status int
		body   []byte
	)
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("x-api-key", c.cfg.APIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("artificialanalysis: failed to connect: %w", err)
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("artificialanalysis: reading response: %w", err)
		}
		status = resp.StatusCode

		retryable := status == http.StatusTooManyRequests || status >= 500
		if !retryable || attempt >= maxRetries {
			break
		}
		wait := c.backoff * time.Duration(1<<attempt)
		slog.Debug("artificialanalysis request retry", "endpoint", endpoint, "status", status, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case status == http.StatusTooManyRequests:
		rl := &RateLimitError{RetryAfter: 3600, Limit: 1000}
		var info struct {
			RetryAfter int `json:"retryAfter"`
			Limit      int `json:"limit"`
		}
		if json.Unmarshal(body, &info) == nil {
			if info.RetryAfter > 0 {
				rl.RetryAfter = info.RetryAfter
			}
			if info.Limit > 0 {
				rl.Limit = info.Limit
			}
		}
		return rl
	case status != http.StatusOK:
		return fmt.Errorf("artificialanalysis: %s returned status %d", endpoint, status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("artificialanalysis: decoding %s: %w", endpoint, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("artificialanalysis: decoding %s data: %w", endpoint, err)
	}
	return nil
}

// Models lists LLMs. limit <= 0 returns all of them.
func (c *Client) Models(ctx context.Context, limit int) ([]ModelInfo, error) {
	var models []ModelInfo

	if c.cache != nil {
		if ok, err := cache.GetJSON(ctx, c.cache, modelsCacheKey, &models); err != nil {
			slog.Warn("model cache read failed", "error", err)
		} else if ok {
			return truncate(models, limit), nil
		}
	}

	if err := c.get(ctx, "data/llms/models", nil, &models); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, modelsCacheKey, models, c.cfg.CacheTTL); err != nil {
			slog.Warn("model cache write failed", "error", err)
		}
	}
	return truncate(models, limit), nil
}

func truncate(models []ModelInfo, limit int) []ModelInfo {
	if limit > 0 && len(models) > limit {
		return models[:limit]
	}
	return models
}

// ModelDetails finds a model by id, slug or name (the latter two
// case-insensitively). It returns nil when nothing matches.
func (c *Client) ModelDetails(ctx context.Context, idOrName string) (*ModelInfo, error) {
	models, err := c.Models(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i, m := range models {
		if m.ID == idOrName || strings.EqualFold(m.Slug, idOrName) || strings.EqualFold(m.Name, idOrName) {
			return &models[i], nil
		}
	}
	return nil, nil
}

// ModelEvaluations returns the benchmark scores of a model, or nil.
func (c *Client) ModelEvaluations(ctx context.Context, idOrName string) (map[string]float64, error) {
	m, err := c.ModelDetails(ctx, idOrName)
	if err != nil || m == nil || len(m.Evaluations) == 0 {
		return nil, err
	}
	return m.Evaluations, nil
}

// SearchModels returns models whose name or slug contains query, optionally
// restricted to creators whose name contains creator.
func (c *Client) SearchModels(ctx context.Context, query, creator string) ([]ModelInfo, error) {
	models, err := c.Models(ctx, 0)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	cr := strings.ToLower(creator)
	var out []ModelInfo
	for _, m := range models {
		if !strings.Contains(strings.ToLower(m.Name), q) && !strings.Contains(strings.ToLower(m.Slug), q) {
			continue
		}
		if cr != "" && !strings.Contains(strings.ToLower(m.CreatorName()), cr) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ModelsByCreator returns models whose creator name contains creator.
func (c *Client) ModelsByCreator(ctx context.Context, creator string) ([]ModelInfo, error) {
	models, err := c.Models(ctx, 0)
	if err != nil {
		return nil, err
	}
	cr := strings.ToLower(creator)
	var out []ModelInfo
	for _, m := range models {
		if m.ModelCreator != nil && strings.Contains(strings.ToLower(m.ModelCreator.Name), cr) {
			out = append(out, m)
		}
	}
	return out, nil
}

// AllTechnicalInfo indexes every model by id.
func (c *Client) AllTechnicalInfo(ctx context.Context) (map[string]ModelInfo, error) {
	models, err := c.Models(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		out[m.ID] = m
	}
	return out, nil
}

func (c *Client) media(ctx context.Context, kind string, includeCategories bool) ([]MediaModel, error) {
	params := url.Values{}
	if includeCategories {
		params.Set("include_categories", "true")
	}
	var out []MediaModel
	if err := c.get(ctx, "data/media/"+kind, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TextToImage lists text-to-image models with ELO ratings.
func (c *Client) TextToImage(ctx context.Context, includeCategories bool) ([]MediaModel, error) {
	return c.media(ctx, "text-to-image", includeCategories)
}

// ImageEditing lists image editing models with ELO ratings.
func (c *Client) ImageEditing(ctx context.Context) ([]MediaModel, error) {
	return c.media(ctx, "image-editing", false)
}

// TextToSpeech lists text-to-speech models with ELO ratings.
func (c *Client) TextToSpeech(ctx context.Context) ([]MediaModel, error) {
	return c.media(ctx, "text-to-speech", false)
}

// TextToVideo lists text-to-video models with ELO ratings.
func (c *Client) TextToVideo(ctx context.Context, includeCategories bool) ([]MediaModel, error) {
	return c.media(ctx, "text-to-video", includeCategories)
}

// ImageToVideo lists image-to-video models with ELO ratings.
func (c *Client) ImageToVideo(ctx context.Context, includeCategories bool) ([]MediaModel, error) {
	return c.media(ctx, "image-to-video", includeCategories)
}
