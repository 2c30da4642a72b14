package digest

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"aisentinel/mention"
	"aisentinel/ratings"
	"aisentinel/taxonomy"
)

// MentionSource lists stored mentions created since a point in time.
type MentionSource interface {
	MentionsSince(since time.Time) ([]mention.Mention, error)
}

// Sender sends formatted messages to a chat.
type Sender interface {
	SendHTML(chatID int64, text string) (int, error)
}

// Config holds digest settings.
type Config struct {
	ChatID     int64
	TopN       int
	WindowDays int
}

// Runner builds and sends the daily digest.
type Runner struct {
	source MentionSource
	sender Sender
	now    func() time.Time

	mu     sync.Mutex
	config Config
}

// NewRunner creates a Runner.
func NewRunner(source MentionSource, sender Sender, cfg Config) *Runner {
	if cfg.WindowDays < 1 {
		cfg.WindowDays = 7
	}
	return &Runner{source: source, sender: sender, config: cfg, now: time.Now}
}

// UpdateConfig updates the digest configuration.
func (r *Runner) UpdateConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.WindowDays < 1 {
		cfg.WindowDays = r.config.WindowDays
	}
	r.config = cfg
}

// Run sends one digest to the configured chat. A digest with no chat is
// skipped.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	cfg := r.config
	r.mu.Unlock()

	if cfg.ChatID == 0 {
		slog.Warn("digest skipped, no chat registered")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	since := now.AddDate(0, 0, -cfg.WindowDays)
	ms, err := r.source.MentionsSince(since)
	if err != nil {
		return fmt.Errorf("loading mentions: %w", err)
	}

	msg := Format(ratings.Top(ratings.Build(ms), cfg.TopN), len(ms), cfg.WindowDays, now)
	msgID, err := r.sender.SendHTML(cfg.ChatID, msg)
	if err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}
	slog.Info("digest sent", "chat_id", cfg.ChatID, "message_id", msgID, "mentions", len(ms))
	return nil
}

// Format renders ranked ratings as a Telegram HTML message.
func Format(top []ratings.Rating, total, windowDays int, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("🛰 <b>AISentinel daily digest</b>\n")
	fmt.Fprintf(&sb, "<i>%s mentions in the last %d days</i>\n\n", humanize.Comma(int64(total)), windowDays)

	if len(top) == 0 {
		sb.WriteString("No tool mentions collected yet.")
		return sb.String()
	}

	for i, r := range top {
		name := html.EscapeString(r.Tool)
		if link := taxonomy.Link(r.Tool); link != "" {
			name = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(link), name)
		}
		fmt.Fprintf(&sb, "%d. %s <b>%s</b> · %s\n", i+1, r.Mood, name, html.EscapeString(r.TypeLabel))
		fmt.Fprintf(&sb, "   Overall %d/10 | Perception %d/10 | Privacy %d/10\n", r.Overall10, r.Perception10, r.Privacy10)
		fmt.Fprintf(&sb, "   %s %s, last %s\n", humanize.Comma(int64(r.N)), plural(r.N, "mention", "mentions"), humanize.RelTime(r.LastMention, now, "ago", "from now"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRating renders the details of one tool.
func FormatRating(r ratings.Rating, positive, negative []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b> (%s)\n\n", r.Mood, html.EscapeString(r.Tool), html.EscapeString(r.TypeLabel))
	fmt.Fprintf(&sb, "Overall: %d/10\nUser perception: %d/10\nPrivacy &amp; security: %d/10\n", r.Overall10, r.Perception10, r.Privacy10)
	fmt.Fprintf(&sb, "Based on %s %s\n", humanize.Comma(int64(r.N)), plural(r.N, "mention", "mentions"))
	if link := taxonomy.Link(r.Tool); link != "" {
		fmt.Fprintf(&sb, "🔗 <a href=\"%s\">Website</a>\n", html.EscapeString(link))
	}
	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n<b>%s</b>\n", title)
		for _, t := range items {
			fmt.Fprintf(&sb, "• %s\n", html.EscapeString(truncate(t, 200)))
		}
	}
	writeList("Highlights", positive)
	writeList("Concerns", negative)
	return strings.TrimRight(sb.String(), "\n")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
