package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS client_state (
	domain     TEXT PRIMARY KEY,
	blob       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type pgStore struct {
	db *sqlx.DB
}

// NewPostgres returns a Store backed by a single client_state table,
// creating the table if needed. Useful when several terminals share one
// persisted session, e.g. a desk deployment.
func NewPostgres(db *sqlx.DB) (Store, error) {
	if _, err := db.Exec(pgSchema); err != nil {
		return nil, fmt.Errorf("storage: ensure schema: %w", err)
	}
	return &pgStore{db: db}, nil
}

// NewPostgresDSN connects to dsn and returns a Postgres-backed Store.
func NewPostgresDSN(dsn string) (Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	return NewPostgres(db)
}

func (s *pgStore) Get(ctx context.Context, domain string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.GetContext(ctx, &blob,
		`SELECT blob FROM client_state WHERE domain = $1`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: pg get %s: %w", domain, err)
	}
	return blob, true, nil
}

func (s *pgStore) Set(ctx context.Context, domain string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (domain, blob, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (domain) DO UPDATE SET blob = $2, updated_at = now()`,
		domain, blob)
	if err != nil {
		return fmt.Errorf("storage: pg set %s: %w", domain, err)
	}
	return nil
}

func (s *pgStore) Remove(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE domain = $1`, domain)
	if err != nil {
		return fmt.Errorf("storage: pg remove %s: %w", domain, err)
	}
	return nil
}
