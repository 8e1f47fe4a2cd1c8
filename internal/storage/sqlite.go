// Package storage keeps a SQLite journal of connection and frame activity
// for diagnosing a dashboard after the fact.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// formatTimestamp converts time.Time to a sortable UTC ISO8601 string
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

//go:embed schema.sql
var schema string

// Frame outcomes
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"
)

// Connection is one journaled connection attempt
type Connection struct {
	ID         string
	ClientID   string
	Generation uint64
	URL        string
	StartedAt  time.Time
	Opened     bool
	ClosedAt   *time.Time
	CloseError string
}

// Frame is one journaled inbound frame. Raw is only kept for rejected
// frames.
type Frame struct {
	ID           int64
	ConnectionID string
	ReceivedAt   time.Time
	MessageType  string
	Outcome      string
	Change       string
	Error        string
	RawSize      int
	Raw          []byte
}

// FeedLine is one journaled hit feed entry
type FeedLine struct {
	ID           int64
	ConnectionID string
	At           time.Time
	Text         string
}

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Connection methods ---

// StartConnection records a new connection attempt
func (s *Store) StartConnection(ctx context.Context, c *Connection) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, client_id, generation, url, started_at, opened)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET opened = excluded.opened
	`, c.ID, c.ClientID, int64(c.Generation), c.URL, formatTimestamp(c.StartedAt), boolToInt(c.Opened))
	if err != nil {
		return fmt.Errorf("recording connection: %w", err)
	}
	return nil
}

// CloseConnection marks a connection attempt as finished
func (s *Store) CloseConnection(ctx context.Context, id string, closedAt time.Time, closeErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE connections SET closed_at = ?, close_error = ? WHERE id = ?
	`, formatTimestamp(closedAt), nullString(closeErr), id)
	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// RecentConnections returns the most recent connection attempts, newest first
func (s *Store) RecentConnections(ctx context.Context, limit int) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, generation, url, started_at, opened, closed_at, close_error
		FROM connections ORDER BY started_at DESC, generation DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

// --- Frame methods ---

// RecordFrame stores one frame. Raw bytes are compressed before storage.
func (s *Store) RecordFrame(ctx context.Context, f *Frame) error {
	if f.ReceivedAt.IsZero() {
		f.ReceivedAt = time.Now()
	}
	var raw []byte
	if len(f.Raw) > 0 {
		raw = compress(f.Raw)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO frames (connection_id, received_at, message_type, outcome, change, error, raw_size, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ConnectionID, formatTimestamp(f.ReceivedAt), nullString(f.MessageType), f.Outcome,
		nullString(f.Change), nullString(f.Error), f.RawSize, raw)
	if err != nil {
		return fmt.Errorf("recording frame: %w", err)
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

// RecentFrames returns the newest frames, optionally filtered by outcome
func (s *Store) RecentFrames(ctx context.Context, outcome string, limit int) ([]Frame, error) {
	query := `
		SELECT id, connection_id, received_at, message_type, outcome, change, error, raw_size, raw
		FROM frames`
	args := []any{}
	if outcome != "" {
		query += " WHERE outcome = ?"
		args = append(args, outcome)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, *f)
	}
	return frames, rows.Err()
}

// CountFrames returns frame totals grouped by outcome
func (s *Store) CountFrames(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM frames GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// --- Feed methods ---

// RecordFeed stores one hit feed line
func (s *Store) RecordFeed(ctx context.Context, l *FeedLine) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feed (connection_id, at, text) VALUES (?, ?, ?)
	`, l.ConnectionID, formatTimestamp(l.At), l.Text)
	if err != nil {
		return fmt.Errorf("recording feed line: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// RecentFeed returns the newest feed lines first
func (s *Store) RecentFeed(ctx context.Context, limit int) ([]FeedLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connection_id, at, text FROM feed ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []FeedLine
	for rows.Next() {
		var l FeedLine
		var at string
		if err := rows.Scan(&l.ID, &l.ConnectionID, &at, &l.Text); err != nil {
			return nil, err
		}
		l.At = parseTimestamp(at)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Prune deletes frames and feed lines older than before
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := formatTimestamp(before)
	res, err := s.db.ExecContext(ctx, "DELETE FROM frames WHERE received_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning frames: %w", err)
	}
	n, _ := res.RowsAffected()
	res, err = s.db.ExecContext(ctx, "DELETE FROM feed WHERE at < ?", cutoff)
	if err != nil {
		return n, fmt.Errorf("pruning feed: %w", err)
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}
