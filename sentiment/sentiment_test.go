package sentiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisentinel/mention"
	"aisentinel/model"
)

type fakePredictor struct {
	calls [][]string
	pred  func(text string) model.Prediction
}

func (f *fakePredictor) Predict(texts []string) []model.Prediction {
	f.calls = append(f.calls, append([]string(nil), texts...))
	out := make([]model.Prediction, len(texts))
	for i, t := range texts {
		out[i] = f.pred(t)
	}
	return out
}

func fixed(label string, conf float64) func(string) model.Prediction {
	return func(string) model.Prediction {
		return model.Prediction{Label: label, Confidence: conf}
	}
}

func TestCustom_ScoreSign(t *testing.T) {
	for _, tc := range []struct {
		label string
		score float64
	}{
		{mention.Positive, 0.9},
		{mention.Negative, -0.9},
		{mention.Neutral, 0},
	} {
		c := NewCustom(&fakePredictor{pred: fixed(tc.label, 0.9)}, 4)
		r := c.Analyze("some text")
		assert.Equal(t, tc.label, r.Label)
		assert.InDelta(t, tc.score, r.Score, 1e-9)
		assert.InDelta(t, 0.9, r.Confidence, 1e-9)
		assert.Equal(t, NameCustom, r.Analyzer)
	}
}

func TestCustom_BlankTextSkipsModel(t *testing.T) {
	fp := &fakePredictor{pred: fixed(mention.Positive, 1)}
	c := NewCustom(fp, 4)

	r := c.Analyze("   ")
	assert.Equal(t, mention.Neutral, r.Label)
	assert.Zero(t, r.Confidence)
	assert.Empty(t, fp.calls)
}

func TestCustom_BatchChunks(t *testing.T) {
	fp := &fakePredictor{pred: fixed(mention.Positive, 0.7)}
	c := NewCustom(fp, 2)

	res := c.AnalyzeBatch([]string{"a", "", "b", "c", "d", "e"})
	require.Len(t, res, 6)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, fp.calls)
	assert.Equal(t, mention.Neutral, res[1].Label)
	assert.Equal(t, mention.Positive, res[5].Label)

	assert.Equal(t, 1, NewCustom(fp, 0).batchSize)
}

func TestCustom_PredictionFailureIsNeutral(t *testing.T) {
	c := NewCustom(&fakePredictor{pred: func(string) model.Prediction { panic("boom") }}, 4)
	r := c.Analyze("anything")
	assert.Equal(t, mention.Neutral, r.Label)
	assert.Zero(t, r.Confidence)
}

func TestLexicon(t *testing.T) {
	l := NewLexicon()

	pos := l.Analyze("I love this tool, it is great and amazing!")
	assert.Equal(t, mention.Positive, pos.Label)
	assert.Greater(t, pos.Score, 0.05)
	assert.InDelta(t, pos.Score, pos.Confidence, 1e-9)

	neg := l.Analyze("This is terrible, I hate it. Awful and broken.")
	assert.Equal(t, mention.Negative, neg.Label)
	assert.Less(t, neg.Score, -0.05)
	assert.InDelta(t, -neg.Score, neg.Confidence, 1e-9)

	neu := l.Analyze("The release notes list version numbers.")
	assert.Equal(t, mention.Neutral, neu.Label)
	assert.Zero(t, neu.Score)
	assert.InDelta(t, 0.5, neu.Confidence, 1e-9)

	empty := l.Analyze("")
	assert.Zero(t, empty.Confidence)

	assert.Len(t, l.AnalyzeBatch([]string{"good", "bad", ""}), 3)
}

func TestNeutral(t *testing.T) {
	res := Neutral{}.AnalyzeBatch([]string{"great", "awful"})
	for _, r := range res {
		assert.Equal(t, mention.Neutral, r.Label)
		assert.Zero(t, r.Confidence)
		assert.Equal(t, NameNeutral, r.Analyzer)
	}
}

func TestNew_FallbackChain(t *testing.T) {
	ok := func(string) (Predictor, error) { return &fakePredictor{pred: fixed(mention.Positive, 1)}, nil }
	fail := func(string) (Predictor, error) { return nil, errors.New("missing model.json") }

	a := New(Options{UseCustomModel: true, ModelDir: "m", Lexicon: true, LoadPredictor: ok})
	assert.Equal(t, NameCustom, a.Name())

	a = New(Options{UseCustomModel: true, ModelDir: "m", Lexicon: true, LoadPredictor: fail})
	assert.Equal(t, NameLexicon, a.Name())

	a = New(Options{UseCustomModel: false, ModelDir: "m", Lexicon: true, LoadPredictor: ok})
	assert.Equal(t, NameLexicon, a.Name())

	a = New(Options{UseCustomModel: true, ModelDir: "m", LoadPredictor: fail})
	assert.Equal(t, NameNeutral, a.Name())

	a = New(Options{UseCustomModel: true, ModelDir: t.TempDir()})
	assert.Equal(t, NameNeutral, a.Name(), "an empty directory has no model")
}

func TestApply(t *testing.T) {
	var m mention.Mention
	Apply(&m, Result{Score: -0.4, Label: mention.Negative, Confidence: 0.4, Analyzer: NameLexicon})
	assert.Equal(t, mention.Negative, m.Label)
	assert.Equal(t, NameLexicon, m.Analyzer)
	assert.InDelta(t, -0.4, m.Score, 1e-9)
}
