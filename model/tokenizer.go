package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OOVToken is the out-of-vocabulary marker. It always has index 1; index 0
// is reserved for padding.
const OOVToken = "<OOV>"

const filters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

var filterReplacer = func() *strings.Replacer {
	var pairs []string
	for _, r := range filters {
		pairs = append(pairs, string(r), " ")
	}
	return strings.NewReplacer(pairs...)
}()

// Tokenizer maps words to integer ids ranked by corpus frequency.
type Tokenizer struct {
	// NumWords caps the usable vocabulary: ids >= NumWords become OOV.
	// Zero means no cap.
	NumWords int

	counts map[string]int
	seen   []string // first-occurrence order, for stable ranking
	words  []string // words[i] has id i+1
	index  map[string]int
}

// NewTokenizer creates an empty tokenizer.
func NewTokenizer(numWords int) *Tokenizer {
	return &Tokenizer{
		NumWords: numWords,
		counts:   make(map[string]int),
		index:    map[string]int{OOVToken: 1},
		words:    []string{OOVToken},
	}
}

// Words lower-cases text, replaces punctuation with spaces and splits it.
func Words(text string) []string {
	text = filterReplacer.Replace(strings.ToLower(text))
	parts := strings.Split(text, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Fit updates word counts from texts and rebuilds the index. Words are ranked
// by descending count; ties keep first-occurrence order.
func (t *Tokenizer) Fit(texts []string) {
	for _, text := range texts {
		for _, w := range Words(text) {
			if _, ok := t.counts[w]; !ok {
				t.seen = append(t.seen, w)
			}
			t.counts[w]++
		}
	}

	ranked := append([]string(nil), t.seen...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return t.counts[ranked[i]] > t.counts[ranked[j]]
	})

	t.words = append([]string{OOVToken}, ranked...)
	t.index = make(map[string]int, len(t.words))
	for i, w := range t.words {
		if _, dup := t.index[w]; !dup {
			t.index[w] = i + 1
		}
	}
}

// WordIndexSize is the number of indexed words, OOV included.
func (t *Tokenizer) WordIndexSize() int { return len(t.words) }

// VocabSize is the embedding input dimension implied by the index and the cap.
func (t *Tokenizer) VocabSize() int {
	n := len(t.words) + 1
	if t.NumWords > 0 && t.NumWords < n {
		return t.NumWords
	}
	return n
}

// Index returns the id of word, or 0 when it is not indexed.
func (t *Tokenizer) Index(word string) int { return t.index[word] }

// TextToSequence converts text into word ids.
func (t *Tokenizer) TextToSequence(text string) []int {
	words := Words(text)
	seq := make([]int, 0, len(words))
	for _, w := range words {
		id, ok := t.index[w]
		if !ok || (t.NumWords > 0 && id >= t.NumWords) {
			id = 1
		}
		seq = append(seq, id)
	}
	return seq
}

// TextsToSequences converts every text.
func (t *Tokenizer) TextsToSequences(texts []string) [][]int {
	out := make([][]int, len(texts))
	for i, text := range texts {
		out[i] = t.TextToSequence(text)
	}
	return out
}

// Pad makes every sequence exactly maxLen long, padding with zeros and
// truncating at the end.
func Pad(seqs [][]int, maxLen int) [][]int {
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, maxLen)
		copy(row, s)
		out[i] = row
	}
	return out
}

// tokens strips padding from a padded row. A row with no tokens yields a
// single padding id so every sample has at least one time step.
func tokens(row []int) []int {
	out := make([]int, 0, len(row))
	for _, id := range row {
		if id != 0 {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return []int{0}
	}
	return out
}

type tokenizerJSON struct {
	NumWords int            `json:"num_words"`
	OOVToken string         `json:"oov_token"`
	Words    []string       `json:"words"`
	Counts   map[string]int `json:"word_counts"`
}

func (t *Tokenizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenizerJSON{
		NumWords: t.NumWords,
		OOVToken: OOVToken,
		Words:    t.words[1:],
		Counts:   t.counts,
	})
}

func (t *Tokenizer) UnmarshalJSON(b []byte) error {
	var tj tokenizerJSON
	if err := json.Unmarshal(b, &tj); err != nil {
		return err
	}
	if tj.OOVToken != "" && tj.OOVToken != OOVToken {
		return fmt.Errorf("unsupported oov token %q", tj.OOVToken)
	}
	*t = *NewTokenizer(tj.NumWords)
	t.words = append(t.words, tj.Words...)
	for i, w := range t.words {
		if _, dup := t.index[w]; !dup {
			t.index[w] = i + 1
		}
	}
	t.seen = append(t.seen, tj.Words...)
	for w, n := range tj.Counts {
		t.counts[w] = n
	}
	return nil
}
