package artificialanalysis

import (
	"context"
	"sort"
	"strings"

	"aisentinel/taxonomy"
)

const intelligenceIndex = "artificial_analysis_intelligence_index"

// ToolMetrics holds the benchmark entries related to a tracked tool.
type ToolMetrics struct {
	Tool   string       `json:"tool"`
	Vendor string       `json:"vendor"`
	LLMs   []ModelInfo  `json:"llms,omitempty"`
	Media  []MediaModel `json:"media,omitempty"`
}

// Empty reports whether nothing matched.
func (t *ToolMetrics) Empty() bool {
	return t == nil || (len(t.LLMs) == 0 && len(t.Media) == 0)
}

// ForTool collects up to max benchmark entries for a tool: LLMs by vendor for
// text and code tools, media leaderboards for image, video and audio tools.
// Tools without a known vendor yield nil.
func (c *Client) ForTool(ctx context.Context, tool taxonomy.Tool, max int) (*ToolMetrics, error) {
	if tool.Vendor == "" {
		return nil, nil
	}
	if max <= 0 {
		max = 5
	}
	tm := &ToolMetrics{Tool: tool.Name, Vendor: tool.Vendor}

	switch tool.Category {
	case taxonomy.Text, taxonomy.Code:
		models, err := c.ModelsByCreator(ctx, tool.Vendor)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(models, func(i, j int) bool {
			return models[i].Evaluations[intelligenceIndex] > models[j].Evaluations[intelligenceIndex]
		})
		if len(models) > max {
			models = models[:max]
		}
		tm.LLMs = models

	case taxonomy.VideoPic:
		for _, fetch := range []func(context.Context, bool) ([]MediaModel, error){c.TextToImage, c.TextToVideo} {
			list, err := fetch(ctx, false)
			if err != nil {
				return nil, err
			}
			tm.Media = append(tm.Media, matchMedia(list, tool)...)
		}

	case taxonomy.Audio:
		list, err := c.TextToSpeech(ctx)
		if err != nil {
			return nil, err
		}
		tm.Media = matchMedia(list, tool)
	}

	sort.SliceStable(tm.Media, func(i, j int) bool { return tm.Media[i].ELO > tm.Media[j].ELO })
	if len(tm.Media) > max {
		tm.Media = tm.Media[:max]
	}
	return tm, nil
}

func matchMedia(list []MediaModel, tool taxonomy.Tool) []MediaModel {
	vendor := strings.ToLower(tool.Vendor)
	name := strings.ToLower(tool.Name)
	var out []MediaModel
	for _, m := range list {
		creator := ""
		if m.ModelCreator != nil {
			creator = strings.ToLower(m.ModelCreator.Name)
		}
		if strings.Contains(creator, vendor) || strings.Contains(strings.ToLower(m.Name), name) {
			out = append(out, m)
		}
	}
	return out
}
