package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists appended events to a SQLite table in chain order. The
// table is insert-only; verification reads rows back by sequence and replays
// VerifyChain over them.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink prepares the schema on the given handle.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteSink opens (or creates) a database file and prepares the schema.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger sqlite open: %w", err)
	}
	return NewSQLiteSink(db)
}

func (s *SQLiteSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		details JSON,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Write inserts one event.
func (s *SQLiteSink) Write(ctx context.Context, e Event) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("ledger sqlite marshal details: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, timestamp, actor, action, details, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Actor, e.Action,
		string(details), e.PrevHash, e.Hash)
	if err != nil {
		return fmt.Errorf("ledger sqlite insert: %w", err)
	}
	return nil
}

// Events reads stored events ordered by sequence. limit <= 0 reads all.
func (s *SQLiteSink) Events(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT id, timestamp, actor, action, details, prev_hash, hash
		FROM audit_events ORDER BY seq`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger sqlite query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var ts, details string
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &details, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("ledger sqlite scan: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("ledger sqlite timestamp parse: %w", err)
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("ledger sqlite details decode: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }
