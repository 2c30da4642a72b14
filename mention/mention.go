package mention

import (
	"context"
	"time"

	"aisentinel/taxonomy"
)

// Kinds of collected records.
const (
	KindTweet   = "tweet"
	KindPost    = "post"
	KindComment = "comment"
	KindStory   = "story"
)

// Sentiment labels.
const (
	Negative = "negative"
	Neutral  = "neutral"
	Positive = "positive"
)

// Mention is a single collected text record attributed to an AI tool.
type Mention struct {
	ID        string            `json:"id"`
	Source    taxonomy.Source   `json:"source"`
	Kind      string            `json:"kind"`
	Author    string            `json:"author,omitempty"`
	Title     string            `json:"title,omitempty"`
	Text      string            `json:"text"`
	URL       string            `json:"url,omitempty"`
	Subreddit string            `json:"subreddit,omitempty"`
	Lang      string            `json:"lang,omitempty"`
	Tool      string            `json:"tool,omitempty"`
	Category  taxonomy.Category `json:"category,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	Likes    int `json:"likes,omitempty"`
	Reposts  int `json:"reposts,omitempty"`
	Replies  int `json:"replies,omitempty"`
	Quotes   int `json:"quotes,omitempty"`
	Points   int `json:"points,omitempty"`
	Comments int `json:"comments,omitempty"`

	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Analyzer   string  `json:"analyzer,omitempty"`
}

// Key uniquely identifies a mention across sources.
func (m Mention) Key() string {
	return string(m.Source) + ":" + m.ID
}

// Tagged reports whether the mention was attributed to a tool.
func (m Mention) Tagged() bool {
	return m.Tool != ""
}

// Tag fills Tool and Category from the mention's text.
func (m *Mention) Tag() {
	if tool, cat, ok := taxonomy.Infer(m.Text); ok {
		m.Tool = tool
		m.Category = cat
	}
}

// LabelFor maps a score onto a label using the dashboard thresholds.
func LabelFor(score float64) string {
	switch {
	case score > 0.2:
		return Positive
	case score < -0.2:
		return Negative
	default:
		return Neutral
	}
}

// Collector fetches mentions from one source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Mention, error)
}
