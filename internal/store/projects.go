package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mschirtzinger/taskboard/internal/clock"
	"github.com/mschirtzinger/taskboard/internal/types"
)

const projectColumns = `id, slug, name, path, description, icon, color, created_at, updated_at`

// ProjectStore persists project rows.
type ProjectStore struct {
	ex    dbExecutor
	clock clock.Clock
}

// List returns every project ordered by name.
func (s *ProjectStore) List(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.ex.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*types.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Get retrieves a project by id.
func (s *ProjectStore) Get(ctx context.Context, id int64) (*types.Project, error) {
	row := s.ex.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ProjectNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}
	return p, nil
}

// GetBySlug retrieves a project by slug. It returns (nil, nil) when absent.
func (s *ProjectStore) GetBySlug(ctx context.Context, slug string) (*types.Project, error) {
	row := s.ex.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %q: %w", slug, err)
	}
	return p, nil
}

// Exists reports whether a project id is present.
func (s *ProjectStore) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check project %d: %w", id, err)
	}
	return n > 0, nil
}

// Lookup loads all projects keyed by id, for anchor resolution over many tasks.
func (s *ProjectStore) Lookup(ctx context.Context) (map[int64]*types.Project, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[int64]*types.Project, len(projects))
	for _, p := range projects {
		m[p.ID] = p
	}
	return m, nil
}

// Create inserts a project. A taken slug is a validation error.
func (s *ProjectStore) Create(ctx context.Context, in *types.ProjectInput) (*types.Project, error) {
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSlug(ctx, in.Slug, 0); err != nil {
		return nil, err
	}

	now := formatTime(s.clock.Now())
	result, err := s.ex.ExecContext(ctx, `
		INSERT INTO projects (slug, name, path, description, icon, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Slug, in.Name, in.Path,
		strArg(in.Description), strArg(in.Icon), strArg(in.Color),
		now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new project id: %w", err)
	}
	return s.Get(ctx, id)
}

// Update applies the present fields of patch.
func (s *ProjectStore) Update(ctx context.Context, id int64, patch *types.ProjectPatch) (*types.Project, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Slug.Set {
		if err := s.checkSlug(ctx, patch.Slug.Value, id); err != nil {
			return nil, err
		}
		set("slug", patch.Slug.Value)
	}
	if patch.Name.Set {
		set("name", strings.TrimSpace(patch.Name.Value))
	}
	if patch.Path.Set {
		set("path", strings.TrimSpace(patch.Path.Value))
	}
	if patch.Description.Set {
		set("description", strArg(patch.Description.Ptr()))
	}
	if patch.Icon.Set {
		set("icon", strArg(patch.Icon.Ptr()))
	}
	if patch.Color.Set {
		set("color", strArg(patch.Color.Ptr()))
	}
	set("updated_at", formatTime(s.clock.Now()))
	args = append(args, id)

	if _, err := s.ex.ExecContext(ctx, `UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("failed to update project %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a project row. Linked tasks must be detached or deleted first.
func (s *ProjectStore) Delete(ctx context.Context, id int64) error {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return types.ProjectNotFound(id)
	}
	return nil
}

// checkSlug fails when slug belongs to a project other than self.
func (s *ProjectStore) checkSlug(ctx context.Context, slug string, self int64) error {
	existing, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return types.NewValidationError("slug", "slug %q is already in use", slug)
	}
	return nil
}

func scanProject(row scanner) (*types.Project, error) {
	var p types.Project
	var description, icon, color sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Path, &description, &icon, &color, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Description = nullString(description)
	p.Icon = nullString(icon)
	p.Color = nullString(color)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
