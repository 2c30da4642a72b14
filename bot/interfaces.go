package bot

import (
	"time"

	"aisentinel/mention"
	"aisentinel/sentiment"
)

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendHTML(chatID int64, text string) (int, error)
}

// MentionSource lists stored mentions created since a point in time.
type MentionSource interface {
	MentionsSince(since time.Time) ([]mention.Mention, error)
}

// TextAnalyzer scores a single text.
type TextAnalyzer interface {
	Analyze(text string) sentiment.Result
}

// SettingsStore reads and writes user settings.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// StatsProvider provides collection statistics.
type StatsProvider interface {
	Stats() (Stats, error)
}

// ScheduleUpdater replaces a named daily job.
type ScheduleUpdater interface {
	AddDaily(name, hhmm string, task func()) error
}

// Stats summarizes what has been collected.
type Stats struct {
	Mentions      int
	Tools         int
	LastRun       time.Time
	LastCollected int
	LastStored    int
	LastError     string
}
