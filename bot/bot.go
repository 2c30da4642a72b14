package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aisentinel/config"
	"aisentinel/digest"
	"aisentinel/mention"
	"aisentinel/ratings"
	"aisentinel/taxonomy"
)

// DigestJob is the scheduler name of the daily digest.
const DigestJob = "digest"

// Settings keys persisted by the bot.
const (
	KeyChatID     = "chat_id"
	KeyDigestTime = "digest_time"
	KeyTopN       = "top_n"
)

const maxTopN = 50

// Bot answers Telegram commands via long polling.
type Bot struct {
	api *tgbotapi.BotAPI

	mu         sync.RWMutex
	chatID     int64
	digestTime string
	topN       int
	windowDays int

	sender          MessageSender
	mentions        MentionSource
	analyzer        TextAnalyzer
	settingsStore   SettingsStore
	statsProvider   StatsProvider
	scheduleUpdater ScheduleUpdater
	digestFunc      func()
	now             func() time.Time
}

// Config holds Bot configuration.
type Config struct {
	ChatID     int64
	DigestTime string
	TopN       int
	WindowDays int
}

// Deps holds all injectable dependencies for the Bot.
type Deps struct {
	Sender          MessageSender
	Mentions        MentionSource
	Analyzer        TextAnalyzer
	SettingsStore   SettingsStore
	StatsProvider   StatsProvider
	ScheduleUpdater ScheduleUpdater
	DigestFunc      func()
}

// NewAPI connects to the Telegram Bot API. endpoint overrides
// tgbotapi.APIEndpoint when non-empty.
func NewAPI(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return api, nil
}

// New creates a Bot. api may be nil when deps.Sender is set and Run is not
// used.
func New(api *tgbotapi.BotAPI, cfg Config, deps Deps) *Bot {
	if cfg.TopN < 1 {
		cfg.TopN = 10
	}
	if cfg.WindowDays < 1 {
		cfg.WindowDays = 7
	}
	b := &Bot{
		api:             api,
		chatID:          cfg.ChatID,
		digestTime:      cfg.DigestTime,
		topN:            cfg.TopN,
		windowDays:      cfg.WindowDays,
		sender:          deps.Sender,
		mentions:        deps.Mentions,
		analyzer:        deps.Analyzer,
		settingsStore:   deps.SettingsStore,
		statsProvider:   deps.StatsProvider,
		scheduleUpdater: deps.ScheduleUpdater,
		digestFunc:      deps.DigestFunc,
		now:             time.Now,
	}
	if b.sender == nil {
		b.sender = b
	}
	return b
}

// LoadSettings overrides the configured chat, digest time and top N with
// values persisted by earlier commands.
func (b *Bot) LoadSettings() error {
	if b.settingsStore == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, err := b.settingsStore.GetSetting(KeyChatID); err != nil {
		return err
	} else if v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("stored chat_id %q: %w", v, err)
		}
		b.chatID = id
	}
	if v, err := b.settingsStore.GetSetting(KeyDigestTime); err != nil {
		return err
	} else if v != "" && config.ValidateTime(v) == nil {
		b.digestTime = v
	}
	if v, err := b.settingsStore.GetSetting(KeyTopN); err != nil {
		return err
	} else if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= maxTopN {
		b.topN = n
	}
	return nil
}

// SendHTML sends an HTML-formatted message to a chat and returns the message ID.
func (b *Bot) SendHTML(chatID int64, text string) (int, error) {
	if b.api == nil {
		return 0, errors.New("telegram api not configured")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}
	return sent.MessageID, nil
}

// ChatID returns the registered chat, 0 if none.
func (b *Bot) ChatID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chatID
}

// DigestTime returns the current digest time.
func (b *Bot) DigestTime() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.digestTime
}

// TopN returns how many tools the digest lists.
func (b *Bot) TopN() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.topN
}

// Run starts the long polling loop. Blocks until context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram api not configured")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	slog.Info("telegram bot polling", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			b.handleMessage(update.Message.Chat.ID, update.Message.Text)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.sender.SendHTML(chatID, text); err != nil {
		slog.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleMessage(chatID int64, text string) {
	parts := strings.Fields(text)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return
	}

	command, _, _ := strings.Cut(parts[0], "@")
	args := parts[1:]

	switch command {
	case "/start":
		b.handleStart(chatID)
	case "/help":
		b.reply(chatID, helpText)
	case "/top":
		b.handleTop(chatID, args)
	case "/tool":
		b.handleTool(chatID, strings.Join(args, " "))
	case "/analyze":
		b.handleAnalyze(chatID, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), parts[0])))
	case "/digest":
		b.handleDigest(chatID)
	case "/settings":
		b.handleSettings(chatID, args)
	case "/stats":
		b.handleStats(chatID)
	}
}

const helpText = "Available commands:\n" +
	"/top [N] - Top rated AI tools\n" +
	"/tool NAME - Rating and highlights for one tool\n" +
	"/analyze TEXT - Score the sentiment of a text\n" +
	"/digest - Send the digest now\n" +
	"/settings - View or update digest settings\n" +
	"/stats - Collection statistics"

func (b *Bot) handleStart(chatID int64) {
	b.mu.Lock()
	b.chatID = chatID
	b.mu.Unlock()

	if b.settingsStore != nil {
		if err := b.settingsStore.SetSetting(KeyChatID, strconv.FormatInt(chatID, 10)); err != nil {
			slog.Error("failed to save chat_id", "error", err)
		}
	}

	b.reply(chatID, "Welcome to AISentinel! You will get a daily digest of how people feel about AI tools.\n\n"+helpText)
	slog.Info("chat registered", "chat_id", chatID)
}

// currentRatings loads the mentions of the digest window and rates them.
func (b *Bot) currentRatings() ([]ratings.Rating, []mention.Mention, error) {
	if b.mentions == nil {
		return nil, nil, errors.New("no mention source")
	}
	b.mu.RLock()
	window := b.windowDays
	b.mu.RUnlock()
	ms, err := b.mentions.MentionsSince(b.now().AddDate(0, 0, -window))
	if err != nil {
		return nil, nil, err
	}
	return ratings.Build(ms), ms, nil
}

func (b *Bot) handleTop(chatID int64, args []string) {
	n := b.TopN()
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 || v > maxTopN {
			b.reply(chatID, fmt.Sprintf("Usage: /top [N] (1-%d)", maxTopN))
			return
		}
		n = v
	}

	rs, ms, err := b.currentRatings()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		b.reply(chatID, "Ratings are unavailable right now.")
		return
	}
	b.mu.RLock()
	window := b.windowDays
	b.mu.RUnlock()
	b.reply(chatID, digest.Format(ratings.Top(rs, n), len(ms), window, b.now()))
}

func (b *Bot) handleTool(chatID int64, name string) {
	if name == "" {
		b.reply(chatID, "Usage: /tool NAME")
		return
	}
	if t, ok := taxonomy.Lookup(name); ok {
		name = t.Name
	}

	rs, ms, err := b.currentRatings()
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		b.reply(chatID, "Ratings are unavailable right now.")
		return
	}
	for _, r := range rs {
		if strings.EqualFold(r.Tool, name) {
			pos, neg := ratings.Highlights(ms, r.Tool, 3)
			b.reply(chatID, digest.FormatRating(r, pos, neg))
			return
		}
	}
	b.reply(chatID, fmt.Sprintf("No recent mentions of %s.", html.EscapeString(name)))
}

func (b *Bot) handleAnalyze(chatID int64, text string) {
	if text == "" {
		b.reply(chatID, "Usage: /analyze TEXT")
		return
	}
	if b.analyzer == nil {
		b.reply(chatID, "Sentiment analysis is unavailable.")
		return
	}
	r := b.analyzer.Analyze(text)
	b.reply(chatID, fmt.Sprintf("%s <b>%s</b>\nScore: %.2f\nConfidence: %.0f%%\nAnalyzer: %s",
		ratings.Mood(r.Score), r.Label, r.Score, r.Confidence*100, r.Analyzer))
}

func (b *Bot) handleDigest(chatID int64) {
	if b.digestFunc == nil {
		b.reply(chatID, "Digest is not configured.")
		return
	}
	b.digestFunc()
}

func (b *Bot) handleSettings(chatID int64, args []string) {
	if len(args) == 0 {
		b.mu.RLock()
		msg := fmt.Sprintf("Current settings:\n\nDigest time: %s\nTop tools: %d\nWindow: %d days", b.digestTime, b.topN, b.windowDays)
		b.mu.RUnlock()
		b.reply(chatID, msg)
		return
	}

	if len(args) < 2 {
		b.sendSettingsUsage(chatID)
		return
	}

	switch args[0] {
	case "time":
		b.handleSettingsTime(chatID, args[1])
	case "top":
		b.handleSettingsTop(chatID, args[1])
	default:
		b.sendSettingsUsage(chatID)
	}
}

func (b *Bot) sendSettingsUsage(chatID int64) {
	b.reply(chatID, fmt.Sprintf("Usage:\n/settings time HH:MM\n/settings top N (1-%d)", maxTopN))
}

func (b *Bot) handleSettingsTime(chatID int64, timeStr string) {
	if err := config.ValidateTime(timeStr); err != nil {
		b.sendSettingsUsage(chatID)
		return
	}

	b.mu.Lock()
	b.digestTime = timeStr
	b.mu.Unlock()

	if b.settingsStore != nil {
		if err := b.settingsStore.SetSetting(KeyDigestTime, timeStr); err != nil {
			slog.Error("failed to save digest_time", "error", err)
		}
	}

	if b.scheduleUpdater != nil && b.digestFunc != nil {
		if err := b.scheduleUpdater.AddDaily(DigestJob, timeStr, b.digestFunc); err != nil {
			slog.Error("failed to update schedule", "error", err)
		}
	}

	b.reply(chatID, fmt.Sprintf("Digest time updated to %s", timeStr))
	slog.Info("digest time updated", "time", timeStr)
}

func (b *Bot) handleSettingsTop(chatID int64, countStr string) {
	n, err := strconv.Atoi(countStr)
	if err != nil || n < 1 || n > maxTopN {
		b.sendSettingsUsage(chatID)
		return
	}

	b.mu.Lock()
	b.topN = n
	b.mu.Unlock()

	if b.settingsStore != nil {
		if err := b.settingsStore.SetSetting(KeyTopN, strconv.Itoa(n)); err != nil {
			slog.Error("failed to save top_n", "error", err)
		}
	}

	b.reply(chatID, fmt.Sprintf("Digest will list the top %d tools", n))
	slog.Info("digest size updated", "top_n", n)
}

func (b *Bot) handleStats(chatID int64) {
	if b.statsProvider == nil {
		return
	}

	st, err := b.statsProvider.Stats()
	if err != nil {
		slog.Error("failed to get stats", "error", err)
		return
	}
	if st.Mentions == 0 {
		b.reply(chatID, "No mentions collected yet.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mentions stored: %s\n", humanize.Comma(int64(st.Mentions)))
	fmt.Fprintf(&sb, "Tools mentioned: %d\n", st.Tools)
	if !st.LastRun.IsZero() {
		fmt.Fprintf(&sb, "Last collection: %s (%d collected, %d stored)",
			humanize.RelTime(st.LastRun, b.now(), "ago", "from now"), st.LastCollected, st.LastStored)
		if st.LastError != "" {
			fmt.Fprintf(&sb, "\nLast error: %s", html.EscapeString(st.LastError))
		}
	}
	b.reply(chatID, sb.String())
}
