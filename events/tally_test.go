package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisentinel/mention"
)

func TestTally_Snapshot(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tally := NewTally()

	tally.Record(MentionScored{Tool: "Cursor", Label: mention.Negative, CreatedAt: at})
	tally.Record(MentionScored{Tool: "Claude", Label: mention.Positive, CreatedAt: at.Add(time.Hour)})
	tally.Record(MentionScored{Tool: "Claude", Label: mention.Neutral, CreatedAt: at})
	tally.Record(MentionScored{Tool: "Aider", Label: mention.Positive, CreatedAt: at})
	tally.Record(MentionScored{Label: mention.Positive})

	snap := tally.Snapshot()
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, at.Add(time.Hour), snap.Last)
	require.Len(t, snap.Tools, 3)
	assert.Equal(t, ToolTally{Tool: "Claude", Positive: 1, Neutral: 1, Last: at.Add(time.Hour)}, snap.Tools[0])
	assert.Equal(t, "Aider", snap.Tools[1].Tool)
	assert.Equal(t, 1, snap.Tools[2].Negative)
}

func TestTally_Empty(t *testing.T) {
	snap := NewTally().Snapshot()
	assert.Zero(t, snap.Total)
	assert.NotNil(t, snap.Tools)
	assert.False(t, snap.Since.IsZero())
}

func TestTally_Concurrent(t *testing.T) {
	tally := NewTally()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tally.Record(MentionScored{Tool: "Claude", Label: mention.Positive})
				tally.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := tally.Snapshot()
	assert.Equal(t, 800, snap.Total)
	require.Len(t, snap.Tools, 1)
	assert.Equal(t, 800, snap.Tools[0].Positive)
}
