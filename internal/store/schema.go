// Package store provides the PostgreSQL-backed stores for customers and
// import jobs, built on pgx/v5 connection pools. The import job is kept as
// a single document row (counters plus a JSONB rejection log) addressed by
// id, and is always saved as a whole.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// One statement per entry; pgx's extended query protocol does not accept
// multi-statement strings.
var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id            uuid PRIMARY KEY,
		full_name     text NOT NULL,
		email         text NOT NULL UNIQUE,
		date_of_birth date NOT NULL,
		timezone      text NOT NULL,
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS import_jobs (
		id               uuid PRIMARY KEY,
		status           text NOT NULL,
		total_records    integer NOT NULL DEFAULT 0,
		success_count    integer NOT NULL DEFAULT 0,
		failed_count     integer NOT NULL DEFAULT 0,
		rejected_records jsonb NOT NULL DEFAULT '[]',
		started_at       timestamptz,
		completed_at     timestamptz,
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables if they do not exist yet. It is safe to
// run on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
