package dataset

import (
	"strings"

	"aisentinel/mention"
)

// SyntheticSource tags generated AI-tool reviews.
const SyntheticSource = "synthetic_ai_tools"

var syntheticTools = []string{
	"ChatGPT", "Claude", "Gemini", "GitHub Copilot", "Midjourney",
	"DALL-E", "Stable Diffusion", "Whisper", "ElevenLabs", "DeepSeek",
}

var reviewTemplates = []struct {
	sentiment string
	repeat    int
	templates []string
}{
	{mention.Positive, 5, []string{
		"{tool} is amazing! It really helps with my workflow.",
		"I love using {tool}, it's so intuitive and powerful.",
		"{tool} has completely transformed how I work. Highly recommend!",
		"Best AI tool I've used. {tool} delivers every time.",
		"{tool} exceeded my expectations. Great results!",
		"Incredible performance from {tool}. Worth every penny.",
		"{tool} is a game changer for productivity.",
	}},
	{mention.Negative, 5, []string{
		"{tool} is terrible. Doesn't work as advertised.",
		"Very disappointed with {tool}. Not worth it.",
		"{tool} has too many bugs and issues.",
		"I regret using {tool}. Poor quality outputs.",
		"{tool} is overhyped and underdelivers.",
		"Waste of money. {tool} is not reliable.",
		"{tool} needs major improvements. Frustrating experience.",
	}},
	{mention.Neutral, 2, []string{
		"{tool} is okay, nothing special.",
		"Mixed feelings about {tool}. Some good, some bad.",
		"{tool} works but has room for improvement.",
		"Not sure about {tool} yet, still testing.",
		"{tool} is average compared to alternatives.",
	}},
}

// SyntheticReviews renders the review templates for every tool, repeating
// each template by its class weight. Prepare drops the repeats as duplicates.
func SyntheticReviews() []Example {
	var out []Example
	for _, tool := range syntheticTools {
		for _, group := range reviewTemplates {
			for r := 0; r < group.repeat; r++ {
				for _, tpl := range group.templates {
					out = append(out, Example{
						Text:      strings.ReplaceAll(tpl, "{tool}", tool),
						Sentiment: group.sentiment,
						Source:    SyntheticSource,
					})
				}
			}
		}
	}
	return out
}
