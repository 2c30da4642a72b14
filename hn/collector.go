package hn

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html"

	"aisentinel/mention"
	"aisentinel/scraper"
	"aisentinel/taxonomy"
)

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	QueryTerms  []string // defaults to taxonomy.Keywords()
	Limit       int
	HitsPerPage int
}

// Collector gathers HN stories and comments mentioning tracked tools.
type Collector struct {
	client  Client
	scraper scraper.Scraper // optional, enriches link-only stories
	cfg     CollectorConfig
	now     func() time.Time
}

// NewCollector creates a Collector. s may be nil.
func NewCollector(client Client, s scraper.Scraper, cfg CollectorConfig) *Collector {
	if len(cfg.QueryTerms) == 0 {
		cfg.QueryTerms = taxonomy.Keywords()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.HitsPerPage <= 0 {
		cfg.HitsPerPage = 50
	}
	return &Collector{client: client, scraper: s, cfg: cfg, now: time.Now}
}

func (c *Collector) Name() string { return string(taxonomy.HackerNews) }

// Collect pages through search results until the limit is reached, a page
// comes back empty, or a request fails.
func (c *Collector) Collect(ctx context.Context) ([]mention.Mention, error) {
	query := taxonomy.Query(c.cfg.QueryTerms, 10)
	var out []mention.Mention

	for page := 0; len(out) < c.cfg.Limit; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := c.client.SearchByDate(ctx, query, page, c.cfg.HitsPerPage)
		if err != nil {
			slog.Warn("hn search failed", "page", page, "error", err)
			break
		}
		if len(res.Hits) == 0 {
			break
		}

		for _, hit := range res.Hits {
			m := c.toMention(ctx, hit)
			out = append(out, m)
			if len(out) >= c.cfg.Limit {
				break
			}
		}

		if res.NbPages > 0 && page+1 >= res.NbPages {
			break
		}
	}

	slog.Info("hn collection complete", "count", len(out))
	return out, nil
}

func (c *Collector) toMention(ctx context.Context, hit Hit) mention.Mention {
	body := hit.CommentText
	kind := mention.KindComment
	if body == "" {
		body = hit.StoryText
		kind = mention.KindStory
	}
	body = plainText(body)

	title := hit.Title
	if title == "" {
		title = hit.StoryTitle
	}
	link := hit.URL
	if link == "" {
		link = hit.StoryURL
	}

	text := strings.TrimSpace(hit.Title + "\n\n" + body)

	if kind == mention.KindStory && body == "" && link != "" && c.scraper != nil {
		if page, err := c.scraper.Scrape(ctx, link); err != nil {
			slog.Debug("linked article fetch failed", "url", link, "error", err)
		} else if page.Text != "" {
			text = strings.TrimSpace(text + "\n\n" + page.Text)
		}
	}

	created := c.now().UTC()
	if hit.CreatedAt != "" {
		if t, err := dateparse.ParseIn(hit.CreatedAt, time.UTC); err == nil {
			created = t.UTC()
		}
	}

	m := mention.Mention{
		ID:        hit.ObjectID,
		Source:    taxonomy.HackerNews,
		Kind:      kind,
		Author:    hit.Author,
		Title:     title,
		Text:      text,
		URL:       link,
		CreatedAt: created,
		Points:    hit.Points,
		Comments:  hit.NumComments,
	}
	m.Tag()
	return m
}

// plainText strips the HTML Algolia returns in comment and story bodies.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "br") && sb.Len() > 0 {
			sb.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}
