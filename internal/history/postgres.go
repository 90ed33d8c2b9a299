package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the call_history table. Executed via
// [PostgresStore.Migrate] or applied manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS call_history (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    prospect   TEXT NOT NULL DEFAULT '',
    company    TEXT NOT NULL DEFAULT '',
    outcome    TEXT NOT NULL DEFAULT '',
    final_step TEXT NOT NULL DEFAULT '',
    answers    JSONB NOT NULL DEFAULT '{}',
    cost       JSONB
);
CREATE INDEX IF NOT EXISTS idx_call_history_created ON call_history(created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a Store backed by PostgreSQL. The answers map and cost
// breakdown are serialised as JSONB.
type PostgresStore struct {
	db    DB
	close func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over an existing connection or
// pool. The caller is responsible for calling Migrate before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect postgres: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the Schema DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := s.db.Exec(ctx, insert,
		rec.ID, rec.CreatedAt, rec.Prospect, rec.Company, rec.Outcome, rec.FinalStep,
		answersJSON, costJSON,
	); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}

	const prune = `
		DELETE FROM call_history
		WHERE id NOT IN (
			SELECT id FROM call_history ORDER BY created_at DESC LIMIT $1
		)`
	if _, err := s.db.Exec(ctx, prune, MaxRecords); err != nil {
		return fmt.Errorf("history: prune: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT id, created_at, prospect, company, outcome, final_step, answers, cost
		FROM call_history
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var answersJSON, costJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.CreatedAt, &rec.Prospect, &rec.Company, &rec.Outcome, &rec.FinalStep,
			&answersJSON, &costJSON,
		); err != nil {
			return nil, fmt.Errorf("history: list scan: %w", err)
		}
		if err := json.Unmarshal(answersJSON, &rec.Answers); err != nil {
			return nil, fmt.Errorf("history: unmarshal answers: %w", err)
		}
		if len(costJSON) > 0 {
			rec.Cost = &CostBreakdown{}
			if err := json.Unmarshal(costJSON, rec.Cost); err != nil {
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
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM call_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("history: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
