package dataset

import (
	"regexp"
	"strings"
)

var (
	urlRe      = regexp.MustCompile(`http\S+|www.\S+`)
	handleRe   = regexp.MustCompile(`@\w+`)
	hashtagRe  = regexp.MustCompile(`#(\w+)`)
	spaceRe    = regexp.MustCompile(`\s+`)
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
)

// CleanText strips URLs and @handles, unwraps #hashtags, collapses
// whitespace and drops characters other than word characters, whitespace and
// basic punctuation.
func CleanText(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = handleRe.ReplaceAllString(text, "")
	text = hashtagRe.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
	return disallowed.ReplaceAllString(text, "")
}
