package killswitch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists flag state so switches survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore prepares the schema on the given handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	query := `
	CREATE TABLE IF NOT EXISTS kill_switches (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		state JSON NOT NULL
	);`
	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return nil, fmt.Errorf("killswitch sqlite migrate: %w", err)
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) a database file and prepares the schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("killswitch sqlite open: %w", err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Switch, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM kill_switches WHERE id = ?`, id).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("killswitch sqlite get: %w", err)
	}
	var sw Switch
	if err := json.Unmarshal([]byte(state), &sw); err != nil {
		return nil, fmt.Errorf("killswitch sqlite decode: %w", err)
	}
	return &sw, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sw *Switch) error {
	state, err := json.Marshal(sw)
	if err != nil {
		return fmt.Errorf("killswitch sqlite encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kill_switches (id, category, state) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET category = excluded.category, state = excluded.state`,
		sw.ID, sw.Category, string(state))
	if err != nil {
		return fmt.Errorf("killswitch sqlite put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Switch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM kill_switches`)
	if err != nil {
		return nil, fmt.Errorf("killswitch sqlite list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Switch
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("killswitch sqlite scan: %w", err)
		}
		var sw Switch
		if err := json.Unmarshal([]byte(state), &sw); err != nil {
			return nil, fmt.Errorf("killswitch sqlite decode: %w", err)
		}
		out = append(out, &sw)
	}
	return out, rows.Err()
}

// Close closes the underlying handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
