package model

import (
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Prediction is the classifier output for one text.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Predictor pairs a model with its tokenizer. It is safe for concurrent use.
type Predictor struct {
	mu    sync.Mutex
	model *Model
	tok   *Tokenizer
}

// NewPredictor wraps a trained model and the tokenizer it was trained with.
func NewPredictor(m *Model, tok *Tokenizer) *Predictor {
	return &Predictor{model: m, tok: tok}
}

// LoadPredictor loads model.json and tokenizer.json from dir.
func LoadPredictor(dir string) (*Predictor, error) {
	m, err := Load(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, err
	}
	tok, err := LoadTokenizer(filepath.Join(dir, TokenizerFile))
	if err != nil {
		return nil, err
	}
	return NewPredictor(m, tok), nil
}

// Config returns the architecture of the wrapped model.
func (p *Predictor) Config() Config { return p.model.Config }

// Predict classifies texts.
func (p *Predictor) Predict(texts []string) []Prediction {
	rows := Pad(p.tok.TextsToSequences(texts), p.model.Config.MaxLength)

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Prediction, len(rows))
	for i, row := range rows {
		probs := p.model.Probabilities(row)
		best := floats.MaxIdx(probs)
		pr := Prediction{
			Label:         Labels[best],
			Confidence:    probs[best],
			Probabilities: make(map[string]float64, len(Labels)),
		}
		for j, l := range Labels {
			pr.Probabilities[l] = probs[j]
		}
		out[i] = pr
	}
	return out
}
