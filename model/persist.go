package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names inside a run directory.
const (
	ModelFile     = "model.json"
	TokenizerFile = "tokenizer.json"
	MetricsFile   = "metrics.json"
	HistoryFile   = "history.json"
	ConfigFile    = "config.json"
	CheckpointDir = "checkpoints"
)

type weightsJSON struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type modelJSON struct {
	Config  Config        `json:"config"`
	Weights []weightsJSON `json:"weights"`
}

// Save writes the architecture and weights to path.
func (m *Model) Save(path string) error {
	mj := modelJSON{Config: m.Config}
	for _, p := range m.Params() {
		r, c := p.W.Dims()
		mj.Weights = append(mj.Weights, weightsJSON{Name: p.Name, Rows: r, Cols: c, Data: p.data()})
	}
	return WriteJSON(path, mj)
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	var mj modelJSON
	if err := ReadJSON(path, &mj); err != nil {
		return nil, err
	}
	m, err := New(mj.Config, 0)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	params := m.Params()
	if len(params) != len(mj.Weights) {
		return nil, fmt.Errorf("loading %s: expected %d weight tensors, found %d", path, len(params), len(mj.Weights))
	}
	for i, p := range params {
		w := mj.Weights[i]
		r, c := p.W.Dims()
		if w.Name != p.Name || w.Rows != r || w.Cols != c || len(w.Data) != r*c {
			return nil, fmt.Errorf("loading %s: weight %q (%dx%d) does not match %q (%dx%d)", path, w.Name, w.Rows, w.Cols, p.Name, r, c)
		}
		copy(p.data(), w.Data)
	}
	return m, nil
}

// SaveTokenizer writes t to path.
func SaveTokenizer(path string, t *Tokenizer) error { return WriteJSON(path, t) }

// LoadTokenizer reads a tokenizer written by SaveTokenizer.
func LoadTokenizer(path string) (*Tokenizer, error) {
	t := NewTokenizer(0)
	if err := ReadJSON(path, t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewRunDir creates root/run_YYYYMMDD_HHMMSS and its checkpoint directory.
func NewRunDir(root string, now time.Time) (string, error) {
	dir := filepath.Join(root, "run_"+now.Format("20060102_150405"))
	if err := os.MkdirAll(filepath.Join(dir, CheckpointDir), 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	return dir, nil
}

// Promote copies the model, tokenizer and config of a run into dst, the
// directory the analyzer loads from.
func Promote(runDir, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	for _, name := range []string{ModelFile, TokenizerFile, ConfigFile, MetricsFile} {
		if err := copyFile(filepath.Join(runDir, name), filepath.Join(dst, name)); err != nil {
			if os.IsNotExist(err) && name != ModelFile && name != TokenizerFile {
				continue
			}
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// WriteJSON writes v as indented JSON, creating parent directories and
// replacing path atomically.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
