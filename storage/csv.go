package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// CSVHeader is the column order written by ExportCSV.
var CSVHeader = []string{"created_at", "tool", "category", "score", "label", "text", "source", "id"}

// ImportSource marks mentions imported from a CSV without a source column.
const ImportSource taxonomy.Source = "import"

// ExportCSV writes every mention matching f as CSV, newest first.
func (s *Store) ExportCSV(w io.Writer, f Filter) (int, error) {
	ms, err := s.ListMentions(f)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, fmt.Errorf("storage: write csv header: %w", err)
	}
	for _, m := range ms {
		rec := []string{
			m.CreatedAt.UTC().Format(time.RFC3339),
			m.Tool,
			string(m.Category),
			strconv.FormatFloat(m.Score, 'f', 4, 64),
			m.Label,
			m.Text,
			string(m.Source),
			m.ID,
		}
		if err := cw.Write(rec); err != nil {
			return 0, fmt.Errorf("storage: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("storage: flush csv: %w", err)
	}
	return len(ms), nil
}

// ParseCSV reads mentions in the export shape. created_at, tool, score and
// text are required columns; category defaults from the tool table, label from
// the score, source to ImportSource and id to a hash of the row. Dates are
// parsed leniently in loc.
func ParseCSV(r io.Reader, loc *time.Location) ([]mention.Mention, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("storage: read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"created_at", "tool", "score", "text"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("storage: csv lacks %q column", required)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []mention.Mention
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: read csv: %w", err)
		}

		created, err := dateparse.ParseIn(get(rec, "created_at"), loc)
		if err != nil {
			return nil, fmt.Errorf("storage: csv line %d: bad created_at: %w", line, err)
		}
		score, err := strconv.ParseFloat(get(rec, "score"), 64)
		if err != nil {
			return nil, fmt.Errorf("storage: csv line %d: bad score: %w", line, err)
		}
		score = max(-1, min(1, score))
		m := mention.Mention{
			Tool:       get(rec, "tool"),
			Category:   taxonomy.Category(get(rec, "category")),
			Text:       get(rec, "text"),
			CreatedAt:  created.UTC(),
			Score:      score,
			Label:      get(rec, "label"),
			Source:     taxonomy.Source(get(rec, "source")),
			ID:         get(rec, "id"),
			Kind:       mention.KindPost,
			Analyzer:   "import",
			Confidence: math.Abs(score),
		}
		if m.Category == "" {
			if t, ok := taxonomy.Lookup(m.Tool); ok {
				m.Category = t.Category
			}
		}
		if m.Label == "" {
			m.Label = mention.LabelFor(m.Score)
		}
		if m.Source == "" {
			m.Source = ImportSource
		}
		if m.ID == "" {
			m.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join([]string{get(rec, "created_at"), m.Tool, m.Text}, "\x00"))).String()
		}
		out = append(out, m)
	}
	return out, nil
}

// ImportCSV parses r and saves the mentions. Re-importing the same file
// replaces rather than duplicates rows.
func (s *Store) ImportCSV(r io.Reader, loc *time.Location) (int, error) {
	ms, err := ParseCSV(r, loc)
	if err != nil {
		return 0, err
	}
	return s.SaveMentions(ms)
}
