package model

import (
	"fmt"
	"math/rand/v2"
)

// Architectures.
const (
	LSTM        = "lstm"
	Transformer = "transformer"
)

// Labels in class-index order.
var Labels = []string{"negative", "neutral", "positive"}

// Config describes a classifier architecture.
type Config struct {
	ModelType    string  `json:"model_type"`
	VocabSize    int     `json:"vocab_size"`
	MaxLength    int     `json:"max_length"`
	EmbeddingDim int     `json:"embedding_dim"`
	LSTMUnits    int     `json:"lstm_units"`
	UseAttention bool    `json:"use_attention"`
	NumHeads     int     `json:"num_heads"`
	FFDim        int     `json:"ff_dim"`
	DropoutRate  float64 `json:"dropout_rate"`
	NumClasses   int     `json:"num_classes"`
}

// DefaultConfig returns the stock hyperparameters of an architecture.
func DefaultConfig(modelType string, vocabSize, maxLength int) Config {
	c := Config{
		ModelType:    modelType,
		VocabSize:    vocabSize,
		MaxLength:    maxLength,
		EmbeddingDim: 128,
		LSTMUnits:    64,
		UseAttention: true,
		NumHeads:     4,
		FFDim:        128,
		DropoutRate:  0.5,
		NumClasses:   len(Labels),
	}
	if modelType == Transformer {
		c.DropoutRate = 0.3
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.ModelType != LSTM && c.ModelType != Transformer:
		return fmt.Errorf("unknown model type %q", c.ModelType)
	case c.VocabSize < 2:
		return fmt.Errorf("vocab size must be at least 2, got %d", c.VocabSize)
	case c.MaxLength < 1 || c.EmbeddingDim < 1 || c.NumClasses < 2:
		return fmt.Errorf("invalid dimensions: max_length=%d embedding_dim=%d num_classes=%d", c.MaxLength, c.EmbeddingDim, c.NumClasses)
	case c.DropoutRate < 0 || c.DropoutRate >= 1:
		return fmt.Errorf("dropout rate must be in [0,1), got %g", c.DropoutRate)
	case c.ModelType == LSTM && c.LSTMUnits < 2:
		return fmt.Errorf("lstm units must be at least 2, got %d", c.LSTMUnits)
	case c.ModelType == Transformer && (c.NumHeads < 1 || c.EmbeddingDim%c.NumHeads != 0 || c.FFDim < 1):
		return fmt.Errorf("embedding dim %d must be divisible by num_heads %d", c.EmbeddingDim, c.NumHeads)
	}
	return nil
}

// network is one architecture. forward returns class logits for a single
// unpadded sequence; rng is nil at inference.
type network interface {
	forward(ids []int, rng *rand.Rand) []float64
	backward(dlogits []float64)
	params() []*Param
}

type lstmNet struct {
	emb    *embedding
	drop0  *dropout
	rnn1   *bilstm
	rnn2   *bilstm
	att    *attention
	fc1    *dense
	drop1  *dropout
	fc2    *dense
	drop2  *dropout
	logits *dense
}

func newLSTMNet(c Config, rng *rand.Rand) *lstmNet {
	u2 := c.LSTMUnits / 2
	n := &lstmNet{
		emb:    newEmbedding("embedding", c.VocabSize, c.EmbeddingDim, rng),
		drop0:  &dropout{rate: c.DropoutRate * 0.5, spatial: true},
		rnn1:   newBiLSTM("bilstm1", c.EmbeddingDim, c.LSTMUnits, true, c.DropoutRate*0.3, rng),
		rnn2:   newBiLSTM("bilstm2", 2*c.LSTMUnits, u2, c.UseAttention, c.DropoutRate*0.3, rng),
		fc1:    newDense("dense1", 2*u2, 64, true, rng),
		drop1:  &dropout{rate: c.DropoutRate},
		fc2:    newDense("dense2", 64, 32, true, rng),
		drop2:  &dropout{rate: c.DropoutRate * 0.5},
		logits: newDense("output", 32, c.NumClasses, false, rng),
	}
	if c.UseAttention {
		n.att = newAttention("attention", 2*u2, rng)
	}
	return n
}

func (n *lstmNet) params() []*Param {
	ps := []*Param{n.emb.w}
	ps = append(ps, n.rnn1.params()...)
	ps = append(ps, n.rnn2.params()...)
	if n.att != nil {
		ps = append(ps, n.att.params()...)
	}
	ps = append(ps, n.fc1.params()...)
	ps = append(ps, n.fc2.params()...)
	return append(ps, n.logits.params()...)
}

func (n *lstmNet) forward(ids []int, rng *rand.Rand) []float64 {
	x := n.drop0.forwardSeq(n.emb.forward(ids), rng)
	h := n.rnn2.forward(n.rnn1.forward(x, rng), rng)
	var v []float64
	if n.att != nil {
		v = n.att.forward(h)
	} else {
		v = h[0]
	}
	v = n.drop1.forward(n.fc1.forward(v), rng)
	v = n.drop2.forward(n.fc2.forward(v), rng)
	return n.logits.forward(v)
}

func (n *lstmNet) backward(d []float64) {
	d = n.fc2.backward(n.drop2.backward(n.logits.backward(d)))
	d = n.fc1.backward(n.drop1.backward(d))
	var dh [][]float64
	if n.att != nil {
		dh = n.att.backward(d)
	} else {
		dh = [][]float64{d}
	}
	dx := n.rnn1.backward(n.rnn2.backward(dh))
	n.emb.backward(n.drop0.backwardSeq(dx))
}

type transformerNet struct {
	tok, pos *embedding
	block    *encoderBlock
	drop1    *dropout
	fc       *dense
	drop2    *dropout
	logits   *dense
	n        int
}

func newTransformerNet(c Config, rng *rand.Rand) *transformerNet {
	return &transformerNet{
		tok:    newEmbedding("token_embedding", c.VocabSize, c.EmbeddingDim, rng),
		pos:    newEmbedding("position_embedding", c.MaxLength, c.EmbeddingDim, rng),
		block:  newEncoderBlock("encoder", c.EmbeddingDim, c.NumHeads, c.FFDim, c.DropoutRate, rng),
		drop1:  &dropout{rate: c.DropoutRate},
		fc:     newDense("dense1", c.EmbeddingDim, 64, true, rng),
		drop2:  &dropout{rate: c.DropoutRate},
		logits: newDense("output", 64, c.NumClasses, false, rng),
	}
}

func (n *transformerNet) params() []*Param {
	ps := []*Param{n.tok.w, n.pos.w}
	ps = append(ps, n.block.params()...)
	ps = append(ps, n.fc.params()...)
	return append(ps, n.logits.params()...)
}

func (n *transformerNet) forward(ids []int, rng *rand.Rand) []float64 {
	maxLen, _ := n.pos.w.W.Dims()
	if len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	n.n = len(ids)
	positions := make([]int, len(ids))
	for i := range positions {
		positions[i] = i
	}
	x := addRows(n.tok.forward(ids), n.pos.forward(positions))
	v := meanPool(n.block.forward(x, rng))
	v = n.drop2.forward(n.fc.forward(n.drop1.forward(v, rng)), rng)
	return n.logits.forward(v)
}

func (n *transformerNet) backward(d []float64) {
	d = n.drop1.backward(n.fc.backward(n.drop2.backward(n.logits.backward(d))))
	dx := n.block.backward(meanPoolBackward(d, n.n))
	n.tok.backward(dx)
	n.pos.backward(dx)
}
