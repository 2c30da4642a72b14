package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Why we switched to Cursor</title></head>
<body>
<article>
<h1>Why we switched to Cursor</h1>
<p>Our team spent three months comparing AI coding assistants on a large Go monorepo. This is a write up of what we learned along the way.</p>
<p>The readability library needs a reasonable amount of content to identify the main article body. This second paragraph adds more substance to the article.</p>
<p>In the end the completions were faster and more accurate, and the editor integration felt natural for everyone on the team.</p>
</article>
</body>
</html>`

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScrape_Success(t *testing.T) {
	server := serveHTML(t, articleHTML)

	s := NewScraperWithClient(server.Client(), 0)
	page, err := s.Scrape(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Text == "" {
		t.Fatal("expected non-empty text")
	}
	if !strings.Contains(page.Text, "AI coding assistants") {
		t.Errorf("expected text to contain article body, got: %s", page.Text)
	}
	if strings.Contains(page.Text, "\n") {
		t.Error("expected whitespace to be collapsed")
	}
}

func TestScrape_SendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	s := NewScraperWithClient(server.Client(), 0)
	if _, err := s.Scrape(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "aisentinel/") {
		t.Errorf("expected aisentinel user agent, got %q", got)
	}
}

func TestScrape_ContentTruncation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><title>Long</title></head><body><article>`)
	for i := 0; i < 300; i++ {
		sb.WriteString(fmt.Sprintf("<p>Paragraph %d with enough text to make the article long enough for truncation testing purposes.</p>", i))
	}
	sb.WriteString(`</article></body></html>`)
	server := serveHTML(t, sb.String())

	s := NewScraperWithClient(server.Client(), 500)
	page, err := s.Scrape(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(page.Text); n > 500 {
		t.Errorf("expected at most 500 runes, got %d", n)
	}
}

func TestScrape_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewScraperWithClient(server.Client(), 0)
	if _, err := s.Scrape(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for HTTP 500 response")
	}
}

func TestScrape_RejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	s := NewScraperWithClient(server.Client(), 0)
	if _, err := s.Scrape(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for PDF response")
	}
}

func TestScrape_UnsupportedScheme(t *testing.T) {
	s := NewScraper(time.Second, 0)
	if _, err := s.Scrape(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatal("expected error for ftp url")
	}
}

func TestScrape_InvalidURL(t *testing.T) {
	s := NewScraper(5*time.Second, 0)
	if _, err := s.Scrape(context.Background(), "http://localhost:1/nonexistent"); err == nil {
		t.Fatal("expected error for unreachable URL")
	}
}

func TestScrape_ContextCancellation(t *testing.T) {
	server := serveHTML(t, `<html><body><p>content</p></body></html>`)

	s := NewScraperWithClient(server.Client(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Scrape(ctx, server.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo" {
		t.Errorf("expected héllo, got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected short, got %q", got)
	}
}
