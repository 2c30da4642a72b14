package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

func TestFromMention(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := FromMention(mention.Mention{
		ID:         "abc",
		Source:     taxonomy.Reddit,
		Tool:       "Claude",
		Category:   taxonomy.Text,
		Score:      0.7,
		Label:      mention.Positive,
		Confidence: 0.7,
		Analyzer:   "lexicon",
		CreatedAt:  created,
	}, "run-1")

	assert.Equal(t, "reddit:abc", evt.Key)
	assert.Equal(t, "run-1", evt.RunID)

	data, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"key": "reddit:abc", "source": "reddit", "tool": "Claude", "category": "text",
		"score": 0.7, "label": "positive", "confidence": 0.7, "analyzer": "lexicon",
		"created_at": "2025-01-02T03:04:05Z", "run_id": "run-1"
	}`, string(data))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "aisentinel.mentions.hacker_news", Subject(DefaultSubject, MentionScored{Source: "hacker_news"}))
	assert.Equal(t, "custom", Subject("custom", MentionScored{}))
}

func TestNewNATSBus_Unreachable(t *testing.T) {
	_, err := NewNATSBus(NATSConfig{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestPublish_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &NATSBus{subject: DefaultSubject}
	assert.ErrorIs(t, b.Publish(ctx, MentionScored{Key: "x"}), context.Canceled)
}
