// Package ratings aggregates scored mentions into per-tool ratings on a 0-10
// scale.
package ratings

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// Mood emoji shown next to a rating.
const (
	MoodPositive = "😊"
	MoodMixed    = "😐"
	MoodNegative = "😟"
)

var privacyKeywords = []string{"privacy", "security", "data", "breach", "leak", "unsafe"}

// Rating is the aggregate for one tool.
type Rating struct {
	Tool         string            `json:"tool"`
	Category     taxonomy.Category `json:"category"`
	TypeLabel    string            `json:"type_label"`
	N            int               `json:"n"`
	Positive     int               `json:"pos"`
	Negative     int               `json:"neg"`
	Overall      float64           `json:"overall"`
	Perception   float64           `json:"perception"`
	Privacy      float64           `json:"privacy"` // share of mentions raising privacy concerns
	PrivacyScore float64           `json:"privacy_score"`
	Overall10    int               `json:"overall_10"`
	Perception10 int               `json:"perception_10"`
	Privacy10    int               `json:"privacy_10"`
	Mood         string            `json:"mood"`
	LastMention  time.Time         `json:"last_mention"`
}

// ScoreTo010 maps a score in [-1, 1] onto 0-10. Out-of-range scores are
// clamped; halves round to even.
func ScoreTo010(x float64) int {
	x = max(-1, min(1, x))
	return int(math.RoundToEven((x + 1) * 5))
}

// Mood returns the emoji for an overall score.
func Mood(x float64) string {
	switch {
	case x > 0.2:
		return MoodPositive
	case x < -0.2:
		return MoodNegative
	default:
		return MoodMixed
	}
}

// PrivacyFlag reports whether text raises privacy or security concerns.
func PrivacyFlag(text string) bool {
	lower := strings.ToLower(text)
	return lo.SomeBy(privacyKeywords, func(k string) bool { return strings.Contains(lower, k) })
}

type groupKey struct {
	tool     string
	category taxonomy.Category
}

// Build aggregates mentions per (tool, category). Untagged mentions are
// ignored. Ratings are ordered by tool name.
func Build(ms []mention.Mention) []Rating {
	groups := lo.GroupBy(lo.Filter(ms, func(m mention.Mention, _ int) bool { return m.Tagged() }),
		func(m mention.Mention) groupKey { return groupKey{m.Tool, m.Category} })

	out := make([]Rating, 0, len(groups))
	for key, group := range groups {
		r := Rating{
			Tool:      key.tool,
			Category:  key.category,
			TypeLabel: taxonomy.FriendlyLabel(key.category),
			N:         len(group),
		}
		flagged := 0
		sum := 0.0
		for _, m := range group {
			sum += m.Score
			switch {
			case m.Score > 0.2:
				r.Positive++
			case m.Score < -0.2:
				r.Negative++
			}
			if PrivacyFlag(m.Text) {
				flagged++
			}
			if m.CreatedAt.After(r.LastMention) {
				r.LastMention = m.CreatedAt
			}
		}
		r.Overall = sum / float64(r.N)
		r.Perception = float64(r.Positive-r.Negative) / float64(max(r.N, 1))
		r.Privacy = float64(flagged) / float64(r.N)
		r.PrivacyScore = 1 - max(0, min(1, r.Privacy))
		r.Overall10 = ScoreTo010(r.Overall)
		r.Perception10 = ScoreTo010(r.Perception)
		r.Privacy10 = int(math.RoundToEven(r.PrivacyScore * 10))
		r.Mood = Mood(r.Overall)
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Rating) int {
		return cmp.Or(cmp.Compare(a.Tool, b.Tool), cmp.Compare(a.Category, b.Category))
	})
	return out
}

// Filter keeps ratings whose tool contains query (case-insensitive) and whose
// category is one of categories. An empty query or category list matches all.
func Filter(rs []Rating, query string, categories []taxonomy.Category) []Rating {
	q := strings.ToLower(strings.TrimSpace(query))
	return lo.Filter(rs, func(r Rating, _ int) bool {
		if q != "" && !strings.Contains(strings.ToLower(r.Tool), q) {
			return false
		}
		return len(categories) == 0 || lo.Contains(categories, r.Category)
	})
}

// Top returns the n best ratings by overall, perception and privacy, ties
// broken by tool name. n <= 0 returns all of them sorted.
func Top(rs []Rating, n int) []Rating {
	out := slices.Clone(rs)
	slices.SortStableFunc(out, func(a, b Rating) int {
		return cmp.Or(
			cmp.Compare(b.Overall10, a.Overall10),
			cmp.Compare(b.Perception10, a.Perception10),
			cmp.Compare(b.Privacy10, a.Privacy10),
			cmp.Compare(a.Tool, b.Tool),
		)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Group is the ratings of one category.
type Group struct {
	Category taxonomy.Category `json:"category"`
	Label    string            `json:"label"`
	Icon     string            `json:"icon"`
	Ratings  []Rating          `json:"ratings"`
}

// GroupByType splits ratings by category in display order, each group holding
// its top n. Categories without ratings are left out; categories outside the
// taxonomy follow in name order.
func GroupByType(rs []Rating, n int) []Group {
	byCat := lo.GroupBy(rs, func(r Rating) taxonomy.Category { return r.Category })
	order := slices.Clone(taxonomy.Categories)
	extra := lo.Without(lo.Keys(byCat), taxonomy.Categories...)
	slices.Sort(extra)
	order = append(order, extra...)

	var out []Group
	for _, c := range order {
		if len(byCat[c]) == 0 {
			continue
		}
		out = append(out, Group{
			Category: c,
			Label:    taxonomy.FriendlyLabel(c),
			Icon:     taxonomy.Icon(c),
			Ratings:  Top(byCat[c], n),
		})
	}
	return out
}

// Highlights returns up to k positive and k negative mention texts for tool,
// in the order given.
func Highlights(ms []mention.Mention, tool string, k int) (positive, negative []string) {
	for _, m := range ms {
		if !strings.EqualFold(m.Tool, tool) {
			continue
		}
		switch {
		case m.Label == mention.Positive && len(positive) < k:
			positive = append(positive, m.Text)
		case m.Label == mention.Negative && len(negative) < k:
			negative = append(negative, m.Text)
		}
	}
	return positive, negative
}

// PlaceholderDays is how many days of placeholder mentions each tool gets.
const PlaceholderDays = 10

// Placeholder generates stand-in mentions for every tracked tool over the
// PlaceholderDays days ending today, so the dashboard has something to show
// before the first collection. Scores depend only on the tool name and day.
func Placeholder(now time.Time) []mention.Mention {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var out []mention.Mention
	for _, t := range taxonomy.Tools {
		h := fnv.New32a()
		h.Write([]byte(t.Name))
		seed := int(h.Sum32() % 7)
		for d := range PlaceholderDays {
			score := float64((seed+d)%7-3) / 3
			out = append(out, mention.Mention{
				ID:        fmt.Sprintf("placeholder-%s-%d", t.Name, d),
				Source:    "placeholder",
				Text:      "User mention about " + t.Name,
				Tool:      t.Name,
				Category:  t.Category,
				CreatedAt: today.AddDate(0, 0, d-(PlaceholderDays-1)),
				Score:     score,
				Label:     mention.LabelFor(score),
			})
		}
	}
	return out
}
