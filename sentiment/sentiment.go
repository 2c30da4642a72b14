package sentiment

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/jonreiter/govader"

	"aisentinel/mention"
	"aisentinel/model"
)

// Analyzer names recorded on scored mentions.
const (
	NameCustom  = "custom"
	NameLexicon = "lexicon"
	NameNeutral = "neutral"
)

// Result is the sentiment of one text. Score is in [-1, 1] and Confidence in
// [0, 1].
type Result struct {
	Score         float64            `json:"score"`
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Analyzer      string             `json:"analyzer"`
}

// Analyzer scores texts.
type Analyzer interface {
	Name() string
	Analyze(text string) Result
	AnalyzeBatch(texts []string) []Result
}

func neutralResult(analyzer string) Result {
	return Result{Label: mention.Neutral, Analyzer: analyzer}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Predictor is a trained classifier.
type Predictor interface {
	Predict(texts []string) []model.Prediction
}

// Custom scores texts with a trained classifier.
type Custom struct {
	predictor Predictor
	batchSize int
}

// NewCustom wraps p; batches are split into chunks of batchSize.
func NewCustom(p Predictor, batchSize int) *Custom {
	return &Custom{predictor: p, batchSize: max(1, batchSize)}
}

func (c *Custom) Name() string { return NameCustom }

func (c *Custom) Analyze(text string) Result {
	return c.AnalyzeBatch([]string{text})[0]
}

func (c *Custom) AnalyzeBatch(texts []string) []Result {
	out := make([]Result, len(texts))
	var idx []int
	var batch []string
	for i, t := range texts {
		if blank(t) {
			out[i] = neutralResult(NameCustom)
			continue
		}
		idx = append(idx, i)
		batch = append(batch, t)
	}

	for start := 0; start < len(batch); start += c.batchSize {
		end := min(start+c.batchSize, len(batch))
		preds := c.predict(batch[start:end])
		for k, i := range idx[start:end] {
			if preds == nil {
				out[i] = neutralResult(NameCustom)
				continue
			}
			out[i] = fromPrediction(preds[k])
		}
	}
	return out
}

// predict returns nil when the classifier fails.
func (c *Custom) predict(texts []string) (preds []model.Prediction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("custom model prediction failed", "error", r, "texts", len(texts))
			preds = nil
		}
	}()
	preds = c.predictor.Predict(texts)
	if len(preds) != len(texts) {
		slog.Warn("custom model returned wrong number of predictions", "want", len(texts), "got", len(preds))
		return nil
	}
	return preds
}

func fromPrediction(p model.Prediction) Result {
	r := Result{
		Label:         p.Label,
		Confidence:    p.Confidence,
		Probabilities: p.Probabilities,
		Analyzer:      NameCustom,
	}
	switch p.Label {
	case mention.Positive:
		r.Score = p.Confidence
	case mention.Negative:
		r.Score = -p.Confidence
	default:
		r.Label = mention.Neutral
	}
	return r
}

// Lexicon thresholds on the VADER compound score.
const (
	PositiveThreshold = 0.05
	NegativeThreshold = -0.05
)

// Lexicon scores texts with the VADER rule-based lexicon.
type Lexicon struct {
	mu  sync.Mutex
	sia *govader.SentimentIntensityAnalyzer
}

// NewLexicon creates a lexicon analyzer.
func NewLexicon() *Lexicon {
	return &Lexicon{sia: govader.NewSentimentIntensityAnalyzer()}
}

func (l *Lexicon) Name() string { return NameLexicon }

func (l *Lexicon) Analyze(text string) Result {
	if blank(text) {
		return neutralResult(NameLexicon)
	}
	l.mu.Lock()
	s := l.sia.PolarityScores(text)
	l.mu.Unlock()

	r := Result{
		Analyzer: NameLexicon,
		Probabilities: map[string]float64{
			mention.Negative: s.Negative,
			mention.Neutral:  s.Neutral,
			mention.Positive: s.Positive,
		},
	}
	switch {
	case s.Compound >= PositiveThreshold:
		r.Label, r.Score, r.Confidence = mention.Positive, s.Compound, math.Abs(s.Compound)
	case s.Compound <= NegativeThreshold:
		r.Label, r.Score, r.Confidence = mention.Negative, s.Compound, math.Abs(s.Compound)
	default:
		r.Label, r.Confidence = mention.Neutral, 0.5
	}
	return r
}

func (l *Lexicon) AnalyzeBatch(texts []string) []Result {
	out := make([]Result, len(texts))
	for i, t := range texts {
		out[i] = l.Analyze(t)
	}
	return out
}

// Neutral labels everything neutral with zero confidence.
type Neutral struct{}

func (Neutral) Name() string { return NameNeutral }

func (Neutral) Analyze(string) Result { return neutralResult(NameNeutral) }

func (Neutral) AnalyzeBatch(texts []string) []Result {
	out := make([]Result, len(texts))
	for i := range out {
		out[i] = neutralResult(NameNeutral)
	}
	return out
}

// Options selects and configures analyzers.
type Options struct {
	UseCustomModel bool
	ModelDir       string
	Lexicon        bool
	BatchSize      int

	// LoadPredictor loads a classifier from a directory. Defaults to
	// model.LoadPredictor.
	LoadPredictor func(dir string) (Predictor, error)
}

// New returns the first usable analyzer of the chain: the custom model (when
// enabled and loadable), the lexicon (when enabled), then Neutral. Load
// failures are logged and skipped.
func New(opts Options) Analyzer {
	if opts.UseCustomModel && opts.ModelDir != "" {
		load := opts.LoadPredictor
		if load == nil {
			load = func(dir string) (Predictor, error) { return model.LoadPredictor(dir) }
		}
		p, err := load(opts.ModelDir)
		if err == nil {
			slog.Info("sentiment analyzer ready", "analyzer", NameCustom, "model_dir", opts.ModelDir)
			return NewCustom(p, opts.BatchSize)
		}
		slog.Warn("could not load custom model, falling back", "model_dir", opts.ModelDir, "error", err)
	}
	if opts.Lexicon {
		slog.Info("sentiment analyzer ready", "analyzer", NameLexicon)
		return NewLexicon()
	}
	slog.Warn("no sentiment analyzer available, every text will be neutral")
	return Neutral{}
}

// Apply copies r onto m.
func Apply(m *mention.Mention, r Result) {
	m.Score = r.Score
	m.Label = r.Label
	m.Confidence = r.Confidence
	m.Analyzer = r.Analyzer
}
