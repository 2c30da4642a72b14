package scraper

import (
	"context"
	"fmt"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// DefaultMaxChars bounds the text kept from a linked page.
const DefaultMaxChars = 2000

const userAgent = "aisentinel/0.1.0 (+https://github.com/aisentinel)"

// Page is the readable part of a linked web page.
type Page struct {
	Title   string
	Excerpt string
	Text    string
}

// Scraper extracts readable text from the pages HN stories link to.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

type httpScraper struct {
	client   *http.Client
	maxChars int
}

// NewScraper creates a Scraper with the given request timeout.
func NewScraper(timeout time.Duration, maxChars int) Scraper {
	return NewScraperWithClient(&http.Client{Timeout: timeout}, maxChars)
}

// NewScraperWithClient creates a Scraper with a custom HTTP client (for testing).
func NewScraperWithClient(client *http.Client, maxChars int) Scraper {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &httpScraper{client: client, maxChars: maxChars}
}

// Scrape fetches url and extracts its main text. Non-HTML responses are
// rejected.
func (s *httpScraper) Scrape(ctx context.Context, url string) (*Page, error) {
	parsed, err := nurl.Parse(url)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("unsupported url %q", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating scrape request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scraping %s returned status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("scraping %s: unsupported content type %q", url, ct)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting content from %s: %w", url, err)
	}

	return &Page{
		Title:   strings.TrimSpace(article.Title),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Text:    truncate(strings.Join(strings.Fields(article.TextContent), " "), s.maxChars),
	}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
