// Package dataset builds the labelled text splits the classifier is trained
// on, and generates sample scored mentions for demos.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"aisentinel/mention"
)

// Example is one labelled text.
type Example struct {
	Text      string
	Sentiment string
	Source    string
}

// Corpus describes a delimited sentiment corpus on disk or behind a URL.
type Corpus struct {
	Name        string
	Location    string // file path or http(s) URL
	TextColumn  string
	LabelColumn string
	// Labels maps raw label values onto negative, neutral or positive.
	// Unmapped rows are skipped.
	Labels map[string]string
	// Comma is the field delimiter. Zero picks tab for .tsv locations and
	// comma otherwise.
	Comma rune
	Limit int
}

// SST2 describes the GLUE SST-2 tab-separated files.
func SST2(location string) Corpus {
	return Corpus{
		Name:        "sst2",
		Location:    location,
		TextColumn:  "sentence",
		LabelColumn: "label",
		Labels:      map[string]string{"0": mention.Negative, "1": mention.Positive},
		Comma:       '\t',
	}
}

// IMDB describes the IMDB reviews CSV with 0/1 or neg/pos labels.
func IMDB(location string, limit int) Corpus {
	return Corpus{
		Name:        "imdb",
		Location:    location,
		TextColumn:  "text",
		LabelColumn: "label",
		Labels: map[string]string{
			"0": mention.Negative, "neg": mention.Negative, "negative": mention.Negative,
			"1": mention.Positive, "pos": mention.Positive, "positive": mention.Positive,
		},
		Limit: limit,
	}
}

// Load reads the corpus, cleaning every text. client is used for URL
// locations; nil means http.DefaultClient.
func (c Corpus) Load(ctx context.Context, client *http.Client) ([]Example, error) {
	r, err := c.open(ctx, client)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cr := csv.NewReader(r)
	cr.Comma = c.comma()
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("corpus %s: reading header: %w", c.Name, err)
	}
	textIdx, labelIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case c.TextColumn:
			textIdx = i
		case c.LabelColumn:
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("corpus %s: columns %q and %q not found in header %v", c.Name, c.TextColumn, c.LabelColumn, header)
	}

	var out []Example
	for c.Limit <= 0 || len(out) < c.Limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", c.Name, err)
		}
		if textIdx >= len(rec) || labelIdx >= len(rec) {
			continue
		}
		label, ok := c.Labels[strings.ToLower(strings.TrimSpace(rec[labelIdx]))]
		if !ok {
			continue
		}
		out = append(out, Example{Text: CleanText(rec[textIdx]), Sentiment: label, Source: c.Name})
	}
	return out, nil
}

func (c Corpus) comma() rune {
	if c.Comma != 0 {
		return c.Comma
	}
	if strings.EqualFold(filepath.Ext(c.Location), ".tsv") {
		return '\t'
	}
	return ','
}

func (c Corpus) open(ctx context.Context, client *http.Client) (io.ReadCloser, error) {
	if !strings.HasPrefix(c.Location, "http://") && !strings.HasPrefix(c.Location, "https://") {
		f, err := os.Open(c.Location)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", c.Name, err)
		}
		return f, nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: creating request: %w", c.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: downloading: %w", c.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("corpus %s: download returned status %d", c.Name, resp.StatusCode)
	}
	return resp.Body, nil
}
