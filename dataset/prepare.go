package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"aisentinel/model"
)

// ErrNoData is returned when no corpus contributed any example.
var ErrNoData = errors.New("dataset: no examples loaded")

// Split file names.
const (
	TrainFile    = "train.csv"
	ValFile      = "val.csv"
	TestFile     = "test.csv"
	MetadataFile = "metadata.json"
)

// Row is a prepared example with its class index.
type Row struct {
	Example
	Label int
}

// Options controls Prepare.
type Options struct {
	TestSize  float64 // fraction of all rows held out for testing
	ValSize   float64 // fraction of the remainder held out for validation
	Seed      uint64
	MinLength int // texts of at most this many characters are dropped
}

// DefaultOptions returns the stock split settings.
func DefaultOptions() Options {
	return Options{TestSize: 0.2, ValSize: 0.1, Seed: 42, MinLength: 10}
}

// Metadata summarizes a prepared dataset.
type Metadata struct {
	TotalSamples          int            `json:"total_samples"`
	TrainSamples          int            `json:"train_samples"`
	ValSamples            int            `json:"val_samples"`
	TestSamples           int            `json:"test_samples"`
	LabelMap              map[string]int `json:"label_map"`
	Sources               map[string]int `json:"sources"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
}

// Prepared holds the three splits.
type Prepared struct {
	Train, Val, Test []Row
	Metadata         Metadata
}

// Prepare combines examples, drops duplicates, empty and short texts, encodes
// labels and makes stratified train, validation and test splits.
func Prepare(sets [][]Example, opts Options) (*Prepared, error) {
	seen := make(map[string]bool)
	var rows []Row
	total := 0
	for _, set := range sets {
		total += len(set)
		for _, ex := range set {
			if seen[ex.Text] {
				continue
			}
			seen[ex.Text] = true
			if strings.TrimSpace(ex.Text) == "" || ex.Sentiment == "" || utf8.RuneCountInString(ex.Text) <= opts.MinLength {
				continue
			}
			label, err := model.LabelIndex(ex.Sentiment)
			if err != nil {
				continue
			}
			rows = append(rows, Row{Example: ex, Label: label})
		}
	}
	if total == 0 {
		return nil, ErrNoData
	}
	if len(rows) < 3 {
		return nil, fmt.Errorf("dataset: only %d usable examples after cleaning", len(rows))
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	trainVal, test := stratifiedSplit(rows, opts.TestSize, rng)
	train, val := stratifiedSplit(trainVal, opts.ValSize, rng)

	md := Metadata{
		TotalSamples:          len(rows),
		TrainSamples:          len(train),
		ValSamples:            len(val),
		TestSamples:           len(test),
		LabelMap:              make(map[string]int),
		Sources:               make(map[string]int),
		SentimentDistribution: make(map[string]int),
	}
	for i, l := range model.Labels {
		md.LabelMap[l] = i
	}
	for _, r := range rows {
		md.Sources[r.Source]++
		md.SentimentDistribution[r.Sentiment]++
	}
	return &Prepared{Train: train, Val: val, Test: test, Metadata: md}, nil
}

// stratifiedSplit holds out ceil(frac*n) rows, keeping class proportions.
// Per-class quotas are floors of the proportional share; leftover slots go to
// the classes with the largest remainders.
func stratifiedSplit(rows []Row, frac float64, rng *rand.Rand) (keep, held []Row) {
	if frac <= 0 || len(rows) == 0 {
		return shuffled(rows, rng), nil
	}
	byClass := make(map[int][]Row)
	var classes []int
	for _, r := range rows {
		if _, ok := byClass[r.Label]; !ok {
			classes = append(classes, r.Label)
		}
		byClass[r.Label] = append(byClass[r.Label], r)
	}
	sort.Ints(classes)

	nHeld := int(math.Ceil(frac * float64(len(rows))))
	quota := make(map[int]int, len(classes))
	type rem struct {
		class int
		frac  float64
	}
	var rems []rem
	assigned := 0
	for _, c := range classes {
		exact := frac * float64(len(byClass[c]))
		quota[c] = int(math.Floor(exact))
		assigned += quota[c]
		rems = append(rems, rem{c, exact - math.Floor(exact)})
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < nHeld && i < len(rems); i++ {
		c := rems[i].class
		if quota[c] < len(byClass[c]) {
			quota[c]++
			assigned++
		}
	}

	for _, c := range classes {
		members := shuffled(byClass[c], rng)
		held = append(held, members[:quota[c]]...)
		keep = append(keep, members[quota[c]:]...)
	}
	return shuffled(keep, rng), shuffled(held, rng)
}

func shuffled(rows []Row, rng *rand.Rand) []Row {
	out := append([]Row(nil), rows...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Write stores the splits as CSV files plus metadata.json in dir.
func (p *Prepared) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dataset: creating %s: %w", dir, err)
	}
	for name, rows := range map[string][]Row{TrainFile: p.Train, ValFile: p.Val, TestFile: p.Test} {
		if err := writeRows(filepath.Join(dir, name), rows); err != nil {
			return err
		}
	}
	return model.WriteJSON(filepath.Join(dir, MetadataFile), p.Metadata)
}

func writeRows(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{"text", "sentiment", "source", "label"})
	for _, r := range rows {
		w.Write([]string{r.Text, r.Sentiment, r.Source, strconv.Itoa(r.Label)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("dataset: writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadSplit loads a split written by Write.
func ReadSplit(path string) (model.Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Split{}, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return model.Split{}, fmt.Errorf("dataset: reading %s: %w", path, err)
	}
	textIdx, labelIdx := -1, -1
	for i, h := range header {
		switch h {
		case "text":
			textIdx = i
		case "label":
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return model.Split{}, fmt.Errorf("dataset: %s lacks text or label column", path)
	}

	var s model.Split
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Split{}, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		label, err := strconv.Atoi(rec[labelIdx])
		if err != nil || label < 0 || label >= len(model.Labels) {
			return model.Split{}, fmt.Errorf("dataset: %s line %d: invalid label %q", path, line, rec[labelIdx])
		}
		s.Texts = append(s.Texts, rec[textIdx])
		s.Labels = append(s.Labels, label)
	}
	return s, nil
}

// ReadSplits loads train, validation and test splits from dir.
func ReadSplits(dir string) (train, val, test model.Split, err error) {
	if train, err = ReadSplit(filepath.Join(dir, TrainFile)); err != nil {
		return
	}
	if val, err = ReadSplit(filepath.Join(dir, ValFile)); err != nil {
		return
	}
	test, err = ReadSplit(filepath.Join(dir, TestFile))
	return
}
