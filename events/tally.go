package events

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"aisentinel/mention"
)

// ToolTally counts the events seen for one tool, by label.
type ToolTally struct {
	Tool     string    `json:"tool"`
	Positive int       `json:"positive"`
	Neutral  int       `json:"neutral"`
	Negative int       `json:"negative"`
	Last     time.Time `json:"last"`
}

// Total is the number of events counted for the tool.
func (t ToolTally) Total() int { return t.Positive + t.Neutral + t.Negative }

// LiveStats is a point-in-time copy of a Tally.
type LiveStats struct {
	Since time.Time   `json:"since"`
	Total int         `json:"total"`
	Last  time.Time   `json:"last,omitzero"`
	Tools []ToolTally `json:"tools"`
}

// Tally counts scored mentions as they arrive on the bus. It is safe for
// concurrent use.
type Tally struct {
	mu    sync.Mutex
	since time.Time
	last  time.Time
	total int
	tools map[string]*ToolTally
}

// NewTally creates an empty Tally counting from now.
func NewTally() *Tally {
	return &Tally{since: time.Now(), tools: make(map[string]*ToolTally)}
}

// Record counts evt. Events without a tool are ignored.
func (t *Tally) Record(evt MentionScored) {
	if evt.Tool == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.tools[evt.Tool]
	if !ok {
		tt = &ToolTally{Tool: evt.Tool}
		t.tools[evt.Tool] = tt
	}
	switch evt.Label {
	case mention.Positive:
		tt.Positive++
	case mention.Negative:
		tt.Negative++
	default:
		tt.Neutral++
	}
	seen := lo.Ternary(evt.CreatedAt.IsZero(), time.Now(), evt.CreatedAt)
	if seen.After(tt.Last) {
		tt.Last = seen
	}
	if seen.After(t.last) {
		t.last = seen
	}
	t.total++
}

// Snapshot returns the counts so far, busiest tool first.
func (t *Tally) Snapshot() LiveStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	tools := lo.MapToSlice(t.tools, func(_ string, tt *ToolTally) ToolTally { return *tt })
	slices.SortFunc(tools, func(a, b ToolTally) int {
		return cmp.Or(cmp.Compare(b.Total(), a.Total()), cmp.Compare(a.Tool, b.Tool))
	})
	return LiveStats{Since: t.since, Total: t.total, Last: t.last, Tools: tools}
}
