package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aisentinel/taxonomy"
)

func TestKey(t *testing.T) {
	m := Mention{ID: "42", Source: taxonomy.HackerNews}
	assert.Equal(t, "hacker_news:42", m.Key())
}

func TestTag(t *testing.T) {
	m := Mention{Title: "Show HN", Text: "Built this with Cursor in a weekend"}
	m.Tag()
	assert.True(t, m.Tagged())
	assert.Equal(t, "Cursor", m.Tool)
	assert.Equal(t, taxonomy.Code, m.Category)

	none := Mention{Text: "weather is nice"}
	none.Tag()
	assert.False(t, none.Tagged())
	assert.Empty(t, none.Category)
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, Positive, LabelFor(0.21))
	assert.Equal(t, Neutral, LabelFor(0.2))
	assert.Equal(t, Neutral, LabelFor(-0.2))
	assert.Equal(t, Negative, LabelFor(-0.5))
}
