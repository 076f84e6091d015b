// Package store provides a SQLite ledger of recorded sessions and shown toasts.
//
// The month-sharded JSON history stays the source of truth for reports; the
// ledger is the daemon's own audit trail.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/theirongolddev/ocburn/internal/model"
)

// DefaultFileName is the ledger file name inside the ocburn data directory.
const DefaultFileName = "ledger.db"

// Ledger records daemon activity in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at dbPath.
func Open(dbPath string) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// DefaultPath returns ~/.local/share/ocburn/ledger.db, honoring XDG_DATA_HOME.
func DefaultPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ocburn", DefaultFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, ".local", "share", "ocburn", DefaultFileName)
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ToastEntry is one toast shown to the user.
type ToastEntry struct {
	ID        int64
	SessionID string
	Message   string
	Variant   string
	Cost      float64
	ShownAt   time.Time
}

// RecordToast appends t. A zero ShownAt is stored as now.
func (l *Ledger) RecordToast(t ToastEntry) error {
	if t.ShownAt.IsZero() {
		t.ShownAt = time.Now()
	}
	_, err := l.db.Exec(`INSERT INTO toasts (session_id, message, variant, cost, shown_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.SessionID, t.Message, t.Variant, t.Cost, t.ShownAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording toast: %w", err)
	}
	return nil
}

// RecentToasts returns up to limit toasts, newest first.
func (l *Ledger) RecentToasts(limit int) ([]ToastEntry, error) {
	rows, err := l.db.Query(`SELECT id, session_id, message, variant, cost, shown_at
		FROM toasts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ToastEntry
	for rows.Next() {
		var t ToastEntry
		var shown string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Message, &t.Variant, &t.Cost, &shown); err != nil {
			return nil, err
		}
		t.ShownAt, _ = time.Parse(time.RFC3339Nano, shown)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordSession upserts r with the cost of its whole session tree, replacing
// any earlier per-model rows.
func (l *Ledger) RecordSession(r model.SessionRecord, treeCost float64) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, project_id, timestamp_ms, input_tokens, output_tokens, total_tokens,
		 reasoning_tokens, cache_read_tokens, cache_write_tokens, cost, tree_cost, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.ProjectID, r.Timestamp, r.Totals.Input, r.Totals.Output, r.Totals.Total,
		r.Totals.Reasoning, r.Totals.Cache.Read, r.Totals.Cache.Write, r.Cost, treeCost, now,
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", r.SessionID, err)
	}

	if _, err := tx.Exec("DELETE FROM session_models WHERE session_id = ?", r.SessionID); err != nil {
		return err
	}

	for key, s := range r.ByModel {
		_, err = tx.Exec(`INSERT INTO session_models
			(session_id, model, input_tokens, output_tokens, total_tokens,
			 reasoning_tokens, cache_read_tokens, cache_write_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.SessionID, key, s.Input, s.Output, s.Total, s.Reasoning, s.Cache.Read, s.Cache.Write,
		)
		if err != nil {
			return fmt.Errorf("recording session %s model %s: %w", r.SessionID, key, err)
		}
	}

	return tx.Commit()
}

// LedgerSession is a recorded session with the tree cost seen at idle time.
type LedgerSession struct {
	model.SessionRecord
	TreeCost float64
}

// Sessions returns sessions with timestamp >= since, oldest first.
func (l *Ledger) Sessions(since time.Time) ([]LedgerSession, error) {
	rows, err := l.db.Query(`SELECT
		session_id, project_id, timestamp_ms, input_tokens, output_tokens, total_tokens,
		reasoning_tokens, cache_read_tokens, cache_write_tokens, cost, tree_cost
		FROM sessions WHERE timestamp_ms >= ? ORDER BY timestamp_ms, session_id`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []LedgerSession
	for rows.Next() {
		var s LedgerSession
		t := &s.Totals
		err := rows.Scan(&s.SessionID, &s.ProjectID, &s.Timestamp, &t.Input, &t.Output, &t.Total,
			&t.Reasoning, &t.Cache.Read, &t.Cache.Write, &s.Cost, &s.TreeCost)
		if err != nil {
			return nil, err
		}
		s.ByModel = model.TokenStatsByModel{}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	idx := make(map[string]int, len(sessions))
	for i, s := range sessions {
		idx[s.SessionID] = i
	}

	modelRows, err := l.db.Query(`SELECT m.session_id, m.model, m.input_tokens, m.output_tokens,
		m.total_tokens, m.reasoning_tokens, m.cache_read_tokens, m.cache_write_tokens
		FROM session_models m JOIN sessions s ON s.session_id = m.session_id
		WHERE s.timestamp_ms >= ?`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() { _ = modelRows.Close() }()

	for modelRows.Next() {
		var sid, key string
		var st model.TokenStats
		if err := modelRows.Scan(&sid, &key, &st.Input, &st.Output, &st.Total,
			&st.Reasoning, &st.Cache.Read, &st.Cache.Write); err != nil {
			return nil, err
		}
		if i, ok := idx[sid]; ok {
			sessions[i].ByModel[key] = st
		}
	}
	return sessions, modelRows.Err()
}

// Counts returns the number of recorded sessions and toasts.
func (l *Ledger) Counts() (sessions, toasts int, err error) {
	if err = l.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessions); err != nil {
		return 0, 0, err
	}
	if err = l.db.QueryRow("SELECT COUNT(*) FROM toasts").Scan(&toasts); err != nil {
		return 0, 0, err
	}
	return sessions, toasts, nil
}

// DeleteSession removes a session and its per-model rows.
func (l *Ledger) DeleteSession(sessionID string) error {
	_, err := l.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	return err
}
