package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one collection cycle.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Collected  int       `json:"collected"`
	Stored     int       `json:"stored"`
	Error      string    `json:"error,omitempty"`
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// StartRun records the start of a collection cycle and returns its ID.
func (s *Store) StartRun() (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO runs (id, started_at, finished_at, collected, stored, error) VALUES (?, ?, 0, 0, 0, '')`,
		id, s.now().Unix())
	if err != nil {
		return "", fmt.Errorf("storage: start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of the run. runErr may be nil.
func (s *Store) FinishRun(id string, collected, stored int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.Exec(`UPDATE runs SET finished_at = ?, collected = ?, stored = ?, error = ? WHERE id = ?`,
		s.now().Unix(), collected, stored, msg, id)
	if err != nil {
		return fmt.Errorf("storage: finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("storage: finish run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, collected, stored, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Collected, &r.Stored, &r.Error); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished > 0 {
			r.FinishedAt = time.Unix(finished, 0).UTC()
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate runs: %w", err)
	}
	return out, nil
}
