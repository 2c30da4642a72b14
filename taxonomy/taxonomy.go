package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Category is the coarse functional grouping of a tool.
type Category string

const (
	Text     Category = "text"
	Code     Category = "code"
	VideoPic Category = "video_pic"
	Audio    Category = "audio"
)

// Categories lists every category in display order.
var Categories = []Category{Text, Code, VideoPic, Audio}

// Source is a platform mentions are collected from.
type Source string

const (
	Twitter     Source = "twitter"
	Reddit      Source = "reddit"
	HackerNews  Source = "hacker_news"
	GitHub      Source = "github"
	ProductHunt Source = "product_hunt"
	Discord     Source = "discord"
)

// Tool is a tracked AI product.
type Tool struct {
	Name     string
	Category Category
	Domain   string // company domain, used for logos
	Link     string // official site, empty if unknown
	Vendor   string // model creator as named by benchmark providers
}

// Tools is the ordered table of tracked tools. Tool inference walks it in order,
// so more specific names must precede names they contain.
var Tools = []Tool{
	{Name: "ChatGPT", Category: Text, Domain: "openai.com", Link: "https://chat.openai.com/", Vendor: "OpenAI"},
	{Name: "Claude", Category: Text, Domain: "anthropic.com", Link: "https://claude.ai/", Vendor: "Anthropic"},
	{Name: "Gemini", Category: Text, Domain: "google.com", Link: "https://gemini.google.com/", Vendor: "Google"},
	{Name: "DeepSeek", Category: Text, Domain: "deepseek.com", Link: "https://www.deepseek.com/", Vendor: "DeepSeek"},
	{Name: "Mistral", Category: Text, Domain: "mistral.ai", Link: "https://mistral.ai/", Vendor: "Mistral"},
	{Name: "Jasper", Category: Text, Domain: "jasper.ai"},
	{Name: "Copy.ai", Category: Text, Domain: "copy.ai"},
	{Name: "Writesonic", Category: Text, Domain: "writesonic.com"},
	{Name: "Lindy", Category: Text, Domain: "lindy.ai"},

	{Name: "GitHub Copilot", Category: Code, Domain: "github.com", Link: "https://github.com/features/copilot", Vendor: "OpenAI"},
	{Name: "Amazon Q Developer", Category: Code, Domain: "amazon.com", Vendor: "Amazon"},
	{Name: "CodeWhisperer", Category: Code, Domain: "amazon.com", Vendor: "Amazon"},
	{Name: "Tabnine", Category: Code, Domain: "tabnine.com"},
	{Name: "Tabby", Category: Code, Domain: "tabby.tabbyml.com"},
	{Name: "Replit Ghostwriter", Category: Code, Domain: "replit.com"},
	{Name: "Bolt", Category: Code, Domain: "bolt.new", Link: "https://bolt.new/"},
	{Name: "Loveable", Category: Code, Domain: "lovable.dev", Link: "https://www.lovable.dev/"},
	{Name: "JetBrains AI Assistant", Category: Code, Domain: "jetbrains.com"},
	{Name: "Cursor", Category: Code, Domain: "cursor.sh", Link: "https://cursor.sh/"},
	{Name: "Codeium", Category: Code, Domain: "codeium.com"},
	{Name: "Polycoder", Category: Code, Domain: "huggingface.co"},
	{Name: "AskCodi", Category: Code, Domain: "askcodi.com"},
	{Name: "Sourcery", Category: Code, Domain: "sourcery.ai"},
	{Name: "Greta", Category: Code, Domain: "greta.ai"},

	{Name: "Stability AI", Category: VideoPic, Domain: "stability.ai", Vendor: "Stability"},
	{Name: "RunwayML", Category: VideoPic, Domain: "runwayml.com", Vendor: "Runway"},
	{Name: "Midjourney", Category: VideoPic, Domain: "midjourney.com", Link: "https://www.midjourney.com/", Vendor: "Midjourney"},
	{Name: "DALL-E", Category: VideoPic, Domain: "openai.com", Vendor: "OpenAI"},
	{Name: "DreamStudio", Category: VideoPic, Domain: "stability.ai", Vendor: "Stability"},
	{Name: "OpenCV", Category: VideoPic, Domain: "opencv.org"},
	{Name: "Adobe Firefly", Category: VideoPic, Domain: "adobe.com", Vendor: "Adobe"},
	{Name: "Pika Labs", Category: VideoPic, Domain: "pika.art", Vendor: "Pika"},
	{Name: "Luma Dream Machine", Category: VideoPic, Domain: "lumalabs.ai", Vendor: "Luma"},
	{Name: "Vidu", Category: VideoPic, Domain: "vidu.ai", Vendor: "Vidu"},

	{Name: "Whisper", Category: Audio, Domain: "openai.com", Vendor: "OpenAI"},
	{Name: "ElevenLabs", Category: Audio, Domain: "elevenlabs.io", Vendor: "ElevenLabs"},
	{Name: "Murf AI", Category: Audio, Domain: "murf.ai"},
	{Name: "PlayHT", Category: Audio, Domain: "play.ht", Vendor: "PlayHT"},
	{Name: "Speechify", Category: Audio, Domain: "speechify.com"},
	{Name: "Synthesys", Category: Audio, Domain: "synthesys.io"},
	{Name: "Animaker", Category: Audio, Domain: "animaker.com"},
	{Name: "Kits AI", Category: Audio, Domain: "kits.ai"},
	{Name: "WellSaid Labs", Category: Audio, Domain: "wellsaidlabs.com"},
	{Name: "Hume", Category: Audio, Domain: "hume.ai", Vendor: "Hume"},
	{Name: "DupDub", Category: Audio, Domain: "dupdub.com"},
}

var labels = map[Category]string{
	Text:     "Text & Chat",
	Code:     "Coding & Dev",
	VideoPic: "Images & Video",
	Audio:    "Audio & Speech",
	// older category values still found in exported data
	"coding_assistants":      "Coding & Dev",
	"generative_image_video": "Images & Video",
	"nlp_llms":               "Text & Chat",
	"vision_other":           "Images & Video",
}

var icons = map[Category]string{
	Text:     "💬",
	Code:     "💻",
	VideoPic: "🎨",
	Audio:    "🎧",
}

// ByCategory maps every category to its tool names, in table order.
func ByCategory() map[Category][]string {
	out := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		out[c] = []string{}
	}
	for _, t := range Tools {
		out[t.Category] = append(out[t.Category], t.Name)
	}
	return out
}

// Keywords returns the sorted, de-duplicated, lower-cased tool names.
func Keywords() []string {
	seen := make(map[string]bool, len(Tools))
	var out []string
	for _, t := range Tools {
		k := strings.ToLower(t.Name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Query joins up to max terms with OR, the search syntax shared by the
// collector APIs. max <= 0 uses every term.
func Query(terms []string, max int) string {
	if max > 0 && len(terms) > max {
		terms = terms[:max]
	}
	return strings.Join(terms, " OR ")
}

// Infer returns the first tool whose name appears in text, case-insensitively.
func Infer(text string) (string, Category, bool) {
	lower := strings.ToLower(text)
	if lower == "" {
		return "", "", false
	}
	for _, c := range Categories {
		for _, t := range Tools {
			if t.Category != c {
				continue
			}
			if strings.Contains(lower, strings.ToLower(t.Name)) {
				return t.Name, t.Category, true
			}
		}
	}
	return "", "", false
}

// Lookup finds a tool by name, case-insensitively.
func Lookup(name string) (Tool, bool) {
	for _, t := range Tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tool{}, false
}

// FriendlyLabel returns the display label for a category value.
func FriendlyLabel(c Category) string {
	if l, ok := labels[c]; ok {
		return l
	}
	s := strings.ReplaceAll(string(c), "_", " ")
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Icon returns the emoji shown next to a category.
func Icon(c Category) string {
	if i, ok := icons[c]; ok {
		return i
	}
	return "🔹"
}

// Link returns the official site of a tool, or "" if none is known.
func Link(name string) string {
	t, ok := Lookup(name)
	if !ok {
		return ""
	}
	return t.Link
}

// LogoURL returns a Clearbit logo URL for the tool's company, or "" if the
// domain is unknown.
func LogoURL(name string, size int) string {
	t, ok := Lookup(name)
	if !ok || t.Domain == "" {
		return ""
	}
	if size <= 0 {
		size = 64
	}
	return fmt.Sprintf("https://logo.clearbit.com/%s?size=%d", t.Domain, size)
}

// ParseCategory accepts a category value or its friendly label.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, labels[c]) {
			return c, true
		}
	}
	return "", false
}
