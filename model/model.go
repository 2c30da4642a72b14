// Package model implements the sentiment classifier: a tokenizer, a
// bidirectional LSTM with attention or a small Transformer encoder, training
// with Adam, evaluation, and JSON persistence.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Model is a classifier with its weights. It is not safe for concurrent use;
// Predictor serializes access.
type Model struct {
	Config Config
	net    network
}

// New builds a freshly initialized model.
func New(c Config, seed uint64) (*Model, error) {
	if c.NumClasses == 0 {
		c.NumClasses = len(Labels)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := &Model{Config: c}
	if c.ModelType == Transformer {
		m.net = newTransformerNet(c, rng)
	} else {
		m.net = newLSTMNet(c, rng)
	}
	return m, nil
}

// Params returns the trainable parameters in a fixed order.
func (m *Model) Params() []*Param { return m.net.params() }

// NumParams counts the scalar weights.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.Params() {
		n += len(p.data())
	}
	return n
}

func (m *Model) sequence(row []int) []int {
	ids := tokens(row)
	if len(ids) > m.Config.MaxLength {
		ids = ids[:m.Config.MaxLength]
	}
	return ids
}

// Probabilities returns the class distribution for a padded or unpadded id
// sequence.
func (m *Model) Probabilities(row []int) []float64 {
	p := m.net.forward(m.sequence(row), nil)
	softmax(p)
	return p
}

// Sample is one labelled sequence.
type Sample struct {
	IDs   []int
	Label int
}

// step runs forward and backward for one sample, accumulating gradients. It
// returns the cross-entropy loss and whether the prediction was right.
func (m *Model) step(s Sample, rng *rand.Rand) (float64, bool) {
	p := m.net.forward(m.sequence(s.IDs), rng)
	softmax(p)
	loss := -math.Log(math.Max(p[s.Label], 1e-12))
	correct := floats.MaxIdx(p) == s.Label
	p[s.Label] -= 1
	m.net.backward(p)
	return loss, correct
}

// Evaluate returns mean loss, accuracy and the predicted classes.
func (m *Model) Evaluate(samples []Sample) (loss, accuracy float64, preds []int) {
	if len(samples) == 0 {
		return 0, 0, nil
	}
	preds = make([]int, len(samples))
	hits := 0
	for i, s := range samples {
		p := m.Probabilities(s.IDs)
		loss -= math.Log(math.Max(p[s.Label], 1e-12))
		preds[i] = floats.MaxIdx(p)
		if preds[i] == s.Label {
			hits++
		}
	}
	n := float64(len(samples))
	return loss / n, float64(hits) / n, preds
}

func (m *Model) snapshot() [][]float64 {
	ps := m.Params()
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = append([]float64(nil), p.data()...)
	}
	return out
}

func (m *Model) restore(s [][]float64) {
	for i, p := range m.Params() {
		copy(p.data(), s[i])
	}
}

// LabelIndex maps a label name to its class index.
func LabelIndex(label string) (int, error) {
	for i, l := range Labels {
		if l == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown label %q", label)
}
