package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// SampleAnalyzer marks generated mentions.
const SampleAnalyzer = "sample"

var popularTools = map[string]bool{"ChatGPT": true, "Claude": true, "GitHub Copilot": true, "Midjourney": true}

var sampleTexts = map[string][]string{
	mention.Positive: {
		"Really impressed with the results from {tool}!",
		"{tool} has been a game changer for my workflow.",
		"Love using {tool} for my daily tasks. Highly recommend!",
		"The quality of {tool} output is consistently excellent.",
		"Been using {tool} for months now, absolutely worth it!",
		"{tool} saves me hours every week. Great investment.",
		"Just tried {tool} and wow, the accuracy is impressive.",
		"{tool} helped me finish my project in half the time.",
		"The latest update to {tool} made it even better.",
		"Customer support for {tool} was really helpful too.",
	},
	mention.Neutral: {
		"Trying out {tool}, seems okay so far.",
		"{tool} works fine for basic tasks.",
		"Mixed feelings about {tool}, has pros and cons.",
		"Using {tool} occasionally, it's decent.",
		"{tool} is fine but nothing spectacular.",
		"Still evaluating {tool} for our team.",
		"{tool} does what it says, nothing more.",
		"Switched from another tool to {tool}, similar experience.",
		"The free tier of {tool} is limited but usable.",
		"{tool} works but the UI could be better.",
	},
	mention.Negative: {
		"Disappointed with {tool}, expected better quality.",
		"{tool} has too many limitations and bugs.",
		"Not worth the price. {tool} needs improvement.",
		"Having issues with {tool}, very frustrating.",
		"{tool} doesn't live up to the hype honestly.",
		"The output from {tool} is often inaccurate.",
		"{tool} keeps crashing, really unreliable.",
		"Cancelled my {tool} subscription. Not impressed.",
		"{tool} was slow and the results were mediocre.",
		"Would not recommend {tool} in its current state.",
	},
}

var privacyTexts = []string{
	"Worried about data privacy with {tool}.",
	"Is {tool} safe to use with sensitive data?",
	"Concerned about security when using {tool}.",
	"{tool} had a data breach recently, be careful.",
	"Not sure if {tool} is safe for confidential work.",
	"The privacy policy of {tool} is concerning.",
	"Don't trust {tool} with private information.",
	"Security issue reported with {tool} last week.",
}

var sampleSources = []struct {
	source taxonomy.Source
	kind   string
}{
	{taxonomy.Twitter, mention.KindTweet},
	{taxonomy.Reddit, mention.KindPost},
	{taxonomy.HackerNews, mention.KindStory},
}

// SampleMentions generates n scored mentions spread over every tracked tool
// and the 30 days before now, newest first. Popular tools lean positive.
func SampleMentions(n int, now time.Time, seed uint64) []mention.Mention {
	rng := rand.New(rand.NewPCG(seed, seed))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	out := make([]mention.Mention, 0, n)
	for i := 0; i < n; i++ {
		tool := taxonomy.Tools[rng.IntN(len(taxonomy.Tools))]

		posCut, neuCut, hi := 0.40, 0.75, 0.95
		if popularTools[tool.Name] {
			posCut, neuCut, hi = 0.55, 0.85, 1.0
		}
		var label string
		var score float64
		switch roll := rng.Float64(); {
		case roll < posCut:
			label, score = mention.Positive, between(0.25, hi)
		case roll < neuCut:
			label, score = mention.Neutral, between(-0.2, 0.2)
		default:
			label, score = mention.Negative, between(-hi, -0.25)
		}

		created := now.Add(-time.Duration(rng.IntN(31))*24*time.Hour -
			time.Duration(rng.IntN(24))*time.Hour -
			time.Duration(rng.IntN(60))*time.Minute).UTC().Truncate(time.Second)

		var tpl string
		if rng.Float64() < 0.10 && label != mention.Positive {
			tpl = privacyTexts[rng.IntN(len(privacyTexts))]
			if label == mention.Neutral {
				score = between(-0.3, 0)
			}
		} else {
			texts := sampleTexts[label]
			tpl = texts[rng.IntN(len(texts))]
		}

		src := sampleSources[rng.IntN(len(sampleSources))]
		out = append(out, mention.Mention{
			ID:         fmt.Sprintf("sample-%d", i),
			Source:     src.source,
			Kind:       src.kind,
			Text:       strings.ReplaceAll(tpl, "{tool}", tool.Name),
			Tool:       tool.Name,
			Category:   tool.Category,
			CreatedAt:  created,
			Score:      math.Round(score*1e4) / 1e4,
			Label:      label,
			Confidence: math.Abs(score),
			Analyzer:   SampleAnalyzer,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
