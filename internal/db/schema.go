package db

import (
	"context"
	"fmt"
)

// schema is the full persisted layout, applied idempotently at startup.
//
// messages.location is geography(Point, 4326): WGS 84, distances in
// meters, great-circle semantics. The GIST index on it must exist before
// any proximity query runs — without it ST_DWithin degrades to a full
// scan, which the design forbids. Creating it here, in the same step
// that creates the table, makes "index missing" unrepresentable.
//
// from_id/to_id deliberately carry no foreign-key constraint: the store
// does not enforce referential integrity at write time.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,

	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		email         text NOT NULL DEFAULT '',
		first_name    text NOT NULL DEFAULT '',
		last_name     text NOT NULL DEFAULT '',
		password_hash text NOT NULL DEFAULT '',
		friends       uuid[] NOT NULL DEFAULT '{}',
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users (email) WHERE email <> ''`,

	`CREATE TABLE IF NOT EXISTS messages (
		id       uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		date     timestamptz NOT NULL DEFAULT now(),
		subject  text NOT NULL DEFAULT 'No Subject',
		body     text NOT NULL,
		from_id  uuid NOT NULL,
		to_id    uuid NOT NULL,
		location geography(Point, 4326)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_location
		ON messages USING GIST (location)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_to_date
		ON messages (to_id, date)`,
}

// EnsureSchema creates the tables and indexes if they are missing.
// Safe to run on every boot.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Info("database schema ensured")
	return nil
}
