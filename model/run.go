package model

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Split is a set of texts with class indices.
type Split struct {
	Texts  []string
	Labels []int
}

// Len is the number of examples.
func (s Split) Len() int { return len(s.Texts) }

// RunConfig configures a full training run.
type RunConfig struct {
	Model        Config // VocabSize is derived from the tokenizer
	MaxVocabSize int
	Train        TrainConfig
	OutputRoot   string
	Now          func() time.Time
}

// Metrics is the content of metrics.json.
type Metrics struct {
	TestAccuracy float64   `json:"test_accuracy"`
	TestLoss     float64   `json:"test_loss"`
	Report       Report    `json:"classification_report"`
	Confusion    [][]int   `json:"confusion_matrix"`
	ModelType    string    `json:"model_type"`
	VocabSize    int       `json:"vocab_size"`
	MaxLength    int       `json:"max_length"`
	NumParams    int       `json:"num_params"`
	Timestamp    time.Time `json:"timestamp"`
}

// RunResult describes a finished run.
type RunResult struct {
	Dir     string
	History *History
	Metrics Metrics
}

type runConfigJSON struct {
	Model        Config  `json:"model"`
	MaxVocabSize int     `json:"max_vocab_size"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	Seed         uint64  `json:"seed"`
	TrainSize    int     `json:"train_size"`
	ValSize      int     `json:"val_size"`
	TestSize     int     `json:"test_size"`
}

// Train fits a tokenizer and a model on train, monitors val, scores test and
// writes every artifact to a new run directory under rc.OutputRoot.
func Train(ctx context.Context, train, val, test Split, rc RunConfig) (*RunResult, error) {
	if train.Len() == 0 {
		return nil, fmt.Errorf("training split is empty")
	}
	now := time.Now
	if rc.Now != nil {
		now = rc.Now
	}
	log := rc.Train.Logger
	if log == nil {
		log = slog.Default()
	}

	dir, err := NewRunDir(rc.OutputRoot, now())
	if err != nil {
		return nil, err
	}

	tok := NewTokenizer(rc.MaxVocabSize)
	tok.Fit(train.Texts)
	if err := SaveTokenizer(filepath.Join(dir, TokenizerFile), tok); err != nil {
		return nil, err
	}
	log.Info("tokenizer fitted", "words", tok.WordIndexSize(), "vocab_size", tok.VocabSize())

	cfg := rc.Model
	cfg.VocabSize = tok.VocabSize()
	m, err := New(cfg, rc.Train.Seed)
	if err != nil {
		return nil, err
	}
	log.Info("model built", "model_type", cfg.ModelType, "params", m.NumParams())

	if err := WriteJSON(filepath.Join(dir, ConfigFile), runConfigJSON{
		Model:        m.Config,
		MaxVocabSize: rc.MaxVocabSize,
		Epochs:       rc.Train.Epochs,
		BatchSize:    rc.Train.BatchSize,
		LearningRate: rc.Train.LearningRate,
		Seed:         rc.Train.Seed,
		TrainSize:    train.Len(),
		ValSize:      val.Len(),
		TestSize:     test.Len(),
	}); err != nil {
		return nil, err
	}

	tc := rc.Train
	tc.CheckpointDir = filepath.Join(dir, CheckpointDir)
	hist, err := m.Fit(ctx, Encode(tok, train, cfg.MaxLength), Encode(tok, val, cfg.MaxLength), tc)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, HistoryFile), hist); err != nil {
		return nil, err
	}

	metrics := Score(m, Encode(tok, test, cfg.MaxLength))
	metrics.VocabSize = tok.WordIndexSize()
	metrics.Timestamp = now()
	if err := WriteJSON(filepath.Join(dir, MetricsFile), metrics); err != nil {
		return nil, err
	}
	if err := m.Save(filepath.Join(dir, ModelFile)); err != nil {
		return nil, err
	}
	log.Info("training run finished", "dir", dir, "test_accuracy", metrics.TestAccuracy, "epochs", hist.Epochs())

	return &RunResult{Dir: dir, History: hist, Metrics: metrics}, nil
}

// Encode tokenizes and pads a split.
func Encode(tok *Tokenizer, s Split, maxLen int) []Sample {
	rows := Pad(tok.TextsToSequences(s.Texts), maxLen)
	out := make([]Sample, len(rows))
	for i, row := range rows {
		out[i] = Sample{IDs: row, Label: s.Labels[i]}
	}
	return out
}

// Score evaluates m on samples.
func Score(m *Model, samples []Sample) Metrics {
	loss, acc, preds := m.Evaluate(samples)
	truth := make([]int, len(samples))
	for i, s := range samples {
		truth[i] = s.Label
	}
	report := NewReport(truth, preds, Labels)
	return Metrics{
		TestAccuracy: acc,
		TestLoss:     loss,
		Report:       report,
		Confusion:    report.Confusion,
		ModelType:    m.Config.ModelType,
		MaxLength:    m.Config.MaxLength,
		NumParams:    m.NumParams(),
	}
}

// EvaluateDir scores the model stored in dir on test.
func EvaluateDir(dir string, test Split) (Metrics, error) {
	p, err := LoadPredictor(dir)
	if err != nil {
		return Metrics{}, err
	}
	metrics := Score(p.model, Encode(p.tok, test, p.model.Config.MaxLength))
	metrics.VocabSize = p.tok.WordIndexSize()
	metrics.Timestamp = time.Now()
	return metrics, nil
}
