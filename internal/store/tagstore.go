package store

import (
	"context"
	"fmt"

	"github.com/mschirtzinger/taskboard/internal/clock"
	"github.com/mschirtzinger/taskboard/internal/tags"
)

// TagStore is the distinct-tag registry.
type TagStore struct {
	ex    dbExecutor
	clock clock.Clock
}

// Upsert registers each distinct tag. Existing entries are left alone.
func (s *TagStore) Upsert(ctx context.Context, names []string) error {
	now := formatTime(s.clock.Now())
	for _, name := range tags.Distinct(names) {
		if _, err := s.ex.ExecContext(ctx,
			`INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			name, now); err != nil {
			return fmt.Errorf("failed to register tag %q: %w", name, err)
		}
	}
	return nil
}

// List returns the registry alphabetically. An empty registry is first
// backfilled from the tags carried by tasks.
func (s *TagStore) List(ctx context.Context) ([]string, error) {
	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return names, nil
	}

	if err := s.Backfill(ctx); err != nil {
		return nil, err
	}
	return s.names(ctx)
}

// Backfill scans every task's tag column into the registry.
func (s *TagStore) Backfill(ctx context.Context) error {
	rows, err := s.ex.QueryContext(ctx, `SELECT tags FROM tasks WHERE tags IS NOT NULL AND tags != '[]'`)
	if err != nil {
		return fmt.Errorf("failed to scan task tags: %w", err)
	}

	var found []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan task tags: %w", err)
		}
		found = append(found, tags.Decode(raw)...)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("error iterating task tags: %w", err)
	}

	return s.Upsert(ctx, found)
}

func (s *TagStore) names(ctx context.Context) ([]string, error) {
	rows, err := s.ex.QueryContext(ctx, `SELECT name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return names, nil
}
