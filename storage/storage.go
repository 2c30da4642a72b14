package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"aisentinel/mention"
	"aisentinel/taxonomy"
)

// Store provides SQLite-backed persistence for mentions, collection runs and settings.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS mentions (
	key TEXT PRIMARY KEY,
	id TEXT,
	source TEXT,
	kind TEXT,
	author TEXT,
	title TEXT,
	text TEXT,
	url TEXT,
	subreddit TEXT,
	lang TEXT,
	tool TEXT,
	category TEXT,
	created_at INTEGER,
	likes INTEGER,
	reposts INTEGER,
	replies INTEGER,
	quotes INTEGER,
	points INTEGER,
	comments INTEGER,
	score REAL,
	label TEXT,
	confidence REAL,
	analyzer TEXT,
	stored_at INTEGER
);

CREATE INDEX IF NOT EXISTS mentions_tool ON mentions (tool);
CREATE INDEX IF NOT EXISTS mentions_created ON mentions (created_at);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER,
	finished_at INTEGER,
	collected INTEGER,
	stored INTEGER,
	error TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

// New opens the SQLite database at dbPath, creates tables if they don't exist, and returns a Store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	// WAL lets the dashboard read while a collection cycle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const mentionColumns = `id, source, kind, author, title, text, url, subreddit, lang, tool, category,
	created_at, likes, reposts, replies, quotes, points, comments, score, label, confidence, analyzer`

// SaveMentions inserts or replaces mentions by their key in one transaction.
func (s *Store) SaveMentions(ms []mention.Mention) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: begin save mentions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO mentions (key, ` + mentionColumns + `, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("storage: prepare save mentions: %w", err)
	}
	defer stmt.Close()

	storedAt := s.now().Unix()
	for _, m := range ms {
		_, err := stmt.Exec(m.Key(),
			m.ID, string(m.Source), m.Kind, m.Author, m.Title, m.Text, m.URL, m.Subreddit, m.Lang,
			m.Tool, string(m.Category), m.CreatedAt.Unix(),
			m.Likes, m.Reposts, m.Replies, m.Quotes, m.Points, m.Comments,
			m.Score, m.Label, m.Confidence, m.Analyzer, storedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("storage: save mention %s: %w", m.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: commit mentions: %w", err)
	}
	return len(ms), nil
}

// Filter narrows ListMentions. Zero values match everything.
type Filter struct {
	Tool     string
	Category taxonomy.Category
	Label    string
	Source   taxonomy.Source
	Since    time.Time
	Limit    int
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Tool != "" {
		conds = append(conds, "tool = ? COLLATE NOCASE")
		args = append(args, f.Tool)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Label != "" {
		conds = append(conds, "label = ?")
		args = append(args, f.Label)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(f.Source))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.Unix())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListMentions returns mentions matching f, newest first.
func (s *Store) ListMentions(f Filter) ([]mention.Mention, error) {
	where, args := f.where()
	query := `SELECT ` + mentionColumns + ` FROM mentions` + where + ` ORDER BY created_at DESC, key`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list mentions: %w", err)
	}
	defer rows.Close()

	var out []mention.Mention
	for rows.Next() {
		var m mention.Mention
		var source, category string
		var created int64
		if err := rows.Scan(&m.ID, &source, &m.Kind, &m.Author, &m.Title, &m.Text, &m.URL, &m.Subreddit, &m.Lang,
			&m.Tool, &category, &created,
			&m.Likes, &m.Reposts, &m.Replies, &m.Quotes, &m.Points, &m.Comments,
			&m.Score, &m.Label, &m.Confidence, &m.Analyzer); err != nil {
			return nil, fmt.Errorf("storage: scan mention: %w", err)
		}
		m.Source = taxonomy.Source(source)
		m.Category = taxonomy.Category(category)
		m.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate mentions: %w", err)
	}
	return out, nil
}

// CountMentions returns how many mentions match f. f.Limit is ignored.
func (s *Store) CountMentions(f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mentions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count mentions: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes mentions created more than days ago and returns
// how many were deleted. days <= 0 deletes nothing.
func (s *Store) DeleteOlderThan(days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	res, err := s.db.Exec(`DELETE FROM mentions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage: delete mentions older than %d days: %w", days, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: rows affected: %w", err)
	}
	return int(n), nil
}

// ToolCount is the number of stored mentions of one tool.
type ToolCount struct {
	Tool     string
	Category taxonomy.Category
	Count    int
}

// Tools returns the tools with stored mentions, most mentioned first.
func (s *Store) Tools() ([]ToolCount, error) {
	rows, err := s.db.Query(`SELECT tool, category, COUNT(*) AS n FROM mentions
		WHERE tool <> '' GROUP BY tool, category ORDER BY n DESC, tool`)
	if err != nil {
		return nil, fmt.Errorf("storage: list tools: %w", err)
	}
	defer rows.Close()

	var out []ToolCount
	for rows.Next() {
		var tc ToolCount
		var category string
		if err := rows.Scan(&tc.Tool, &category, &tc.Count); err != nil {
			return nil, fmt.Errorf("storage: scan tool: %w", err)
		}
		tc.Category = taxonomy.Category(category)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate tools: %w", err)
	}
	return out, nil
}

// GetSetting returns the value for the given settings key.
// Returns an empty string if the key is not found.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting inserts or replaces a setting key-value pair.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("storage: set setting %q: %w", key, err)
	}
	return nil
}
