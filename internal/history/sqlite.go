package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS call_history (
    id         TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    prospect   TEXT NOT NULL DEFAULT '',
    company    TEXT NOT NULL DEFAULT '',
    outcome    TEXT NOT NULL DEFAULT '',
    final_step TEXT NOT NULL DEFAULT '',
    answers    TEXT NOT NULL DEFAULT '{}',
    cost       TEXT
);
CREATE INDEX IF NOT EXISTS idx_call_history_created ON call_history(created_at DESC);
`

// SQLiteStore is a Store backed by an embedded SQLite database, for
// single-operator deployments with no database server.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %q: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	prepare(rec)

	answersJSON, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("history: marshal answers: %w", err)
	}
	var costJSON []byte
	if rec.Cost != nil {
		costJSON, err = json.Marshal(rec.Cost)
		if err != nil {
			return fmt.Errorf("history: marshal cost: %w", err)
		}
	}

	const insert = `
		INSERT INTO call_history (id, created_at, prospect, company, outcome, final_step, answers, cost)
		VALUES (?,?,?,?,?,?,?,?)`
	if _, err := s.db.ExecContext(ctx, insert,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Prospect, rec.Company, rec.Outcome, rec.FinalStep,
		string(answersJSON), nullableString(costJSON),
	); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}

	const prune = `
		DELETE FROM call_history
		WHERE id NOT IN (
			SELECT id FROM call_history ORDER BY created_at DESC LIMIT ?
		)`
	if _, err := s.db.ExecContext(ctx, prune, MaxRecords); err != nil {
		return fmt.Errorf("history: prune: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT id, created_at, prospect, company, outcome, final_step, answers, cost
		FROM call_history
		ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt, answersJSON string
		var costJSON sql.NullString
		if err := rows.Scan(
			&rec.ID, &createdAt, &rec.Prospect, &rec.Company, &rec.Outcome, &rec.FinalStep,
			&answersJSON, &costJSON,
		); err != nil {
			return nil, fmt.Errorf("history: list scan: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(answersJSON), &rec.Answers); err != nil {
			return nil, fmt.Errorf("history: unmarshal answers: %w", err)
		}
		if costJSON.Valid && costJSON.String != "" {
			rec.Cost = &CostBreakdown{}
			if err := json.Unmarshal([]byte(costJSON.String), rec.Cost); err != nil {
				return nil, fmt.Errorf("history: unmarshal cost: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return records, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM call_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("history: delete %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: delete %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
