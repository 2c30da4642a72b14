// Package pipeline runs one collection cycle: collect, tag, analyze, store
// and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aisentinel/events"
	"aisentinel/mention"
	"aisentinel/sentiment"
)

// Store persists mentions and run bookkeeping.
type Store interface {
	StartRun() (string, error)
	FinishRun(id string, collected, stored int, runErr error) error
	SaveMentions(ms []mention.Mention) (int, error)
	DeleteOlderThan(days int) (int, error)
}

// Analyzer scores texts.
type Analyzer interface {
	Name() string
	AnalyzeBatch(texts []string) []sentiment.Result
}

// Publisher announces stored mentions.
type Publisher interface {
	Publish(ctx context.Context, evt events.MentionScored) error
}

// Config holds collection cycle settings.
type Config struct {
	KeepUntagged  bool
	BatchSize     int
	RetentionDays int // 0 keeps everything
}

// Result summarizes a cycle.
type Result struct {
	RunID     string
	Collected int
	Dropped   int // untagged or duplicate
	Stored    int
	Published int
	Deleted   int
	Failed    []string // collectors that returned an error
}

// Runner orchestrates the collection cycle.
type Runner struct {
	collectors []mention.Collector
	analyzer   Analyzer
	store      Store
	publisher  Publisher
	config     Config
}

// NewRunner creates a Runner. publisher may be nil.
func NewRunner(collectors []mention.Collector, analyzer Analyzer, store Store, publisher Publisher, cfg Config) *Runner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 16
	}
	return &Runner{
		collectors: collectors,
		analyzer:   analyzer,
		store:      store,
		publisher:  publisher,
		config:     cfg,
	}
}

// Run executes one cycle. Collector, publish and retention failures are
// logged and the cycle continues; storage failures and cancellation end it.
// The run is always finished in the store with whatever was counted.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	runID, err := r.store.StartRun()
	if err != nil {
		return res, fmt.Errorf("starting run: %w", err)
	}
	res.RunID = runID
	defer func() {
		if ferr := r.store.FinishRun(runID, res.Collected, res.Stored, err); ferr != nil {
			slog.Error("failed to finish run", "run_id", runID, "error", ferr)
		}
	}()
	slog.Info("collection cycle starting", "run_id", runID, "collectors", len(r.collectors))

	// 1. Collect
	var collected []mention.Mention
	for _, c := range r.collectors {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ms, cerr := c.Collect(ctx)
		if cerr != nil {
			slog.Error("collector failed", "source", c.Name(), "collected", len(ms), "error", cerr)
			res.Failed = append(res.Failed, c.Name())
		}
		slog.Info("collected mentions", "source", c.Name(), "count", len(ms))
		collected = append(collected, ms...)
	}
	res.Collected = len(collected)

	// 2. Tag and de-duplicate
	kept := r.prepare(collected)
	res.Dropped = len(collected) - len(kept)
	slog.Info("prepared mentions", "kept", len(kept), "dropped", res.Dropped)

	// 3. Analyze
	for start := 0; start < len(kept); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := kept[start:min(start+r.config.BatchSize, len(kept))]
		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = m.Text
		}
		for i, result := range r.analyzer.AnalyzeBatch(texts) {
			sentiment.Apply(&batch[i], result)
		}
	}

	// 4. Save
	stored, err := r.store.SaveMentions(kept)
	if err != nil {
		return res, fmt.Errorf("saving mentions: %w", err)
	}
	res.Stored = stored

	// 5. Publish
	if r.publisher != nil {
		for _, m := range kept {
			if err := r.publisher.Publish(ctx, events.FromMention(m, runID)); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return res, err
				}
				slog.Warn("failed to publish mention", "key", m.Key(), "error", err)
				continue
			}
			res.Published++
		}
	}

	// 6. Retention
	if r.config.RetentionDays > 0 {
		deleted, derr := r.store.DeleteOlderThan(r.config.RetentionDays)
		if derr != nil {
			slog.Error("failed to apply retention", "days", r.config.RetentionDays, "error", derr)
		}
		res.Deleted = deleted
	}

	slog.Info("collection cycle complete",
		"run_id", runID,
		"collected", res.Collected,
		"stored", res.Stored,
		"published", res.Published,
		"deleted", res.Deleted,
		"analyzer", r.analyzer.Name(),
	)
	return res, nil
}

// prepare tags mentions that have no tool yet, drops untagged ones unless
// configured otherwise and keeps the first mention of every key.
func (r *Runner) prepare(ms []mention.Mention) []mention.Mention {
	seen := make(map[string]bool, len(ms))
	out := make([]mention.Mention, 0, len(ms))
	for _, m := range ms {
		if !m.Tagged() {
			m.Tag()
		}
		if !m.Tagged() && !r.config.KeepUntagged {
			continue
		}
		if seen[m.Key()] {
			continue
		}
		seen[m.Key()] = true
		out = append(out, m)
	}
	return out
}
