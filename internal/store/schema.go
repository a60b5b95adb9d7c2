package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; a migration's index+1 is its version.
// Append new migrations, never edit applied ones.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			description TEXT,
			icon TEXT,
			color TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'backlog'
				CHECK (status IN ('backlog', 'in_progress', 'review', 'done')),
			priority TEXT
				CHECK (priority IS NULL OR priority IN ('low', 'medium', 'high', 'urgent')),
			due_date TEXT,
			tags TEXT,  -- JSON array
			blocked_reason TEXT,
			assigned_to_type TEXT
				CHECK (assigned_to_type IS NULL OR assigned_to_type IN ('agent', 'human')),
			assigned_to_id TEXT,
			non_agent INTEGER NOT NULL DEFAULT 0,
			anchor TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			project_id INTEGER REFERENCES projects(id),
			context_key TEXT,
			context_type TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT,
			archived_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(status, archived_at, position)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assigned_to_type, assigned_to_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(context_key, context_type)`,
	},
}

// SchemaVersion returns the latest migration version known to this build.
func SchemaVersion() int {
	return len(migrations)
}

// Migrate brings the schema up to date. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	current, err := db.AppliedVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		err := db.WithTx(ctx, func(tx *Tx) error {
			ex := tx.Tasks.ex
			for _, stmt := range migrations[i] {
				if _, err := ex.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to apply migration %d: %w", version, err)
				}
			}
			_, err := ex.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				version, formatTime(db.clock.Now()))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AppliedVersion returns the highest applied migration version.
func (db *DB) AppliedVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
