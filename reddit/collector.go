package reddit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// DefaultSubreddits are searched when none are configured.
var DefaultSubreddits = []string{"MachineLearning", "ArtificialInteligence", "OpenAI", "DataScience"}

// Config configures the Reddit collector.
type Config struct {
	Subreddits      []string
	QueryTerms      []string // defaults to taxonomy.Keywords()
	Limit           int      // submissions per subreddit
	IncludeComments bool
	Pause           time.Duration // after each submission
}

// Collector searches subreddits for posts and comments mentioning tracked tools.
type Collector struct {
	client *Client
	cfg    Config
	sleep  func(context.Context, time.Duration) error
}

// NewCollector creates a Collector.
func NewCollector(client *Client, cfg Config) *Collector {
	if len(cfg.Subreddits) == 0 {
		cfg.Subreddits = DefaultSubreddits
	}
	if len(cfg.QueryTerms) == 0 {
		cfg.QueryTerms = taxonomy.Keywords()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Collector{client: client, cfg: cfg, sleep: sleepCtx}
}

func (c *Collector) Name() string { return string(taxonomy.Reddit) }

// Collect searches every subreddit. Without credentials it returns nothing; on
// a request failure it returns what was collected so far.
func (c *Collector) Collect(ctx context.Context) ([]mention.Mention, error) {
	if !c.client.creds.valid() {
		slog.Info("reddit collection skipped: no credentials")
		return nil, nil
	}

	query := taxonomy.Query(c.cfg.QueryTerms, 10)
	var out []mention.Mention

	for _, sub := range c.cfg.Subreddits {
		posts, err := c.client.Search(ctx, sub, query, c.cfg.Limit)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			slog.Warn("reddit search failed", "subreddit", sub, "error", err, "collected", len(out))
			return out, nil
		}

		for _, p := range posts {
			if m, ok := c.fromPost(p); ok {
				out = append(out, m)
				if c.cfg.IncludeComments {
					comments, err := c.client.Comments(ctx, p.Subreddit, p.ID)
					if err != nil {
						slog.Warn("reddit comments failed", "post", p.ID, "error", err)
					}
					for _, cm := range comments {
						if m, ok := c.fromComment(cm); ok {
							out = append(out, m)
						}
					}
				}
			}
			if err := c.sleep(ctx, c.cfg.Pause); err != nil {
				return out, err
			}
		}
	}

	slog.Info("reddit collection complete", "count", len(out))
	return out, nil
}

func (c *Collector) matches(text string) bool {
	t := strings.ToLower(text)
	for _, term := range c.cfg.QueryTerms {
		if strings.Contains(t, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (c *Collector) fromPost(p Post) (mention.Mention, bool) {
	text := strings.TrimSpace(p.Title + "\n\n" + p.Selftext)
	if !c.matches(text) {
		return mention.Mention{}, false
	}
	m := mention.Mention{
		ID:        p.ID,
		Source:    taxonomy.Reddit,
		Kind:      mention.KindPost,
		Author:    p.Author,
		Title:     p.Title,
		Text:      text,
		URL:       p.URL,
		Subreddit: p.Subreddit,
		CreatedAt: fromUnix(p.CreatedUTC),
		Points:    p.Score,
		Comments:  p.NumComments,
	}
	m.Tag()
	return m, true
}

func (c *Collector) fromComment(cm Comment) (mention.Mention, bool) {
	if !c.matches(cm.Body) {
		return mention.Mention{}, false
	}
	m := mention.Mention{
		ID:        cm.ID,
		Source:    taxonomy.Reddit,
		Kind:      mention.KindComment,
		Author:    cm.Author,
		Text:      cm.Body,
		Subreddit: cm.Subreddit,
		CreatedAt: fromUnix(cm.CreatedUTC),
		Points:    cm.Score,
	}
	m.Tag()
	return m, true
}

func fromUnix(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
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
