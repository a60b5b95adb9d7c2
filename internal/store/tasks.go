package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mschirtzinger/taskboard/internal/clock"
	"github.com/mschirtzinger/taskboard/internal/tags"
	"github.com/mschirtzinger/taskboard/internal/types"
)

const taskColumns = `id, title, description, status, priority, due_date, tags,
	blocked_reason, assigned_to_type, assigned_to_id, non_agent, anchor,
	position, project_id, context_key, context_type,
	created_at, updated_at, completed_at, archived_at`

// completedAtExpr keeps completed_at non-null exactly when status is done.
// Entering done stamps the time once; re-affirming done keeps the original
// stamp; any other status clears it. Args: status, now.
const completedAtExpr = `CASE WHEN ? = 'done' THEN COALESCE(completed_at, ?) ELSE NULL END`

// TaskStore persists task rows.
type TaskStore struct {
	ex    dbExecutor
	clock clock.Clock
	tags  *TagStore
}

func newTaskStore(ex dbExecutor, c clock.Clock) *TaskStore {
	return &TaskStore{ex: ex, clock: c, tags: &TagStore{ex: ex, clock: c}}
}

// List returns tasks matching filter ordered by position, newest first on ties.
// Archived tasks are excluded unless filter.IncludeArchived is set.
func (s *TaskStore) List(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedToType != "" {
		conditions = append(conditions, "assigned_to_type = ?")
		args = append(args, string(filter.AssignedToType))
	}
	if filter.AssignedToID != "" {
		conditions = append(conditions, "assigned_to_id = ?")
		args = append(args, filter.AssignedToID)
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.ContextKey != "" {
		conditions = append(conditions, "context_key = ?")
		args = append(args, filter.ContextKey)
	}
	if filter.ContextType != "" {
		conditions = append(conditions, "context_type = ?")
		args = append(args, filter.ContextType)
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived_at IS NULL")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY position ASC, created_at DESC, id DESC"

	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Get retrieves a single task. A missing id yields a types.NotFoundError.
func (s *TaskStore) Get(ctx context.Context, id int64) (*types.Task, error) {
	row := s.ex.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.TaskNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// MissingIDs returns the ids from the list that have no task row.
func (s *TaskStore) MissingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	rows, err := s.ex.QueryContext(ctx, `SELECT id FROM tasks WHERE id IN (`+marks+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check task ids: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// NextPosition returns one past the highest position in a status column,
// counting only non-archived tasks. An empty column starts at 0.
func (s *TaskStore) NextPosition(ctx context.Context, status types.Status) (int64, error) {
	var next int64
	err := s.ex.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE status = ? AND archived_at IS NULL`,
		string(status)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	return next, nil
}

// Create inserts a task. Without an explicit position the task is appended to
// the end of its column. Tags are normalized and registered.
func (s *TaskStore) Create(ctx context.Context, in *types.TaskInput) (*types.Task, error) {
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var position int64
	if in.Position != nil {
		position = *in.Position
	} else {
		next, err := s.NextPosition(ctx, in.Status)
		if err != nil {
			return nil, err
		}
		position = next
	}

	now := formatTime(s.clock.Now())
	var completedAt any
	if in.Status == types.StatusDone {
		completedAt = now
	}
	tagList := tags.Normalize(in.Tags)

	result, err := s.ex.ExecContext(ctx, `
	INSERT INTO tasks (
		title, description, status, priority, due_date, tags,
		blocked_reason, assigned_to_type, assigned_to_id, non_agent, anchor,
		position, project_id, context_key, context_type,
		created_at, updated_at, completed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title,
		strArg(in.Description),
		string(in.Status),
		strArg(in.Priority),
		strArg(in.DueDate),
		tags.Encode(tagList),
		strArg(in.BlockedReason),
		strArg(in.AssignedToType),
		strArg(in.AssignedToID),
		in.NonAgent,
		strArg(in.Anchor),
		position,
		intArg(in.ProjectID),
		strArg(in.ContextKey),
		strArg(in.ContextType),
		now,
		now,
		completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new task id: %w", err)
	}

	if err := s.tags.Upsert(ctx, tagList); err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Restore inserts a previously exported task under a new id, keeping its
// position and timestamps. The caller validates the content.
func (s *TaskStore) Restore(ctx context.Context, t *types.Task) (*types.Task, error) {
	tagList := tags.FromValues(t.Tags)
	var completedAt, archivedAt any
	if t.CompletedAt != nil {
		completedAt = formatTime(*t.CompletedAt)
	}
	if t.ArchivedAt != nil {
		archivedAt = formatTime(*t.ArchivedAt)
	}

	now := s.clock.Now()
	created, updated := t.CreatedAt, t.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}

	result, err := s.ex.ExecContext(ctx, `
	INSERT INTO tasks (
		title, description, status, priority, due_date, tags,
		blocked_reason, assigned_to_type, assigned_to_id, non_agent, anchor,
		position, project_id, context_key, context_type,
		created_at, updated_at, completed_at, archived_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title,
		strArg(t.Description),
		string(t.Status),
		strArg(t.Priority),
		strArg(t.DueDate),
		tags.Encode(tagList),
		strArg(t.BlockedReason),
		strArg(t.AssignedToType),
		strArg(t.AssignedToID),
		t.NonAgent,
		strArg(t.Anchor),
		t.Position,
		intArg(t.ProjectID),
		strArg(t.ContextKey),
		strArg(t.ContextType),
		formatTime(created),
		formatTime(updated),
		completedAt,
		archivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read restored task id: %w", err)
	}

	if err := s.tags.Upsert(ctx, tagList); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Update applies the present fields of patch. A status change without an
// explicit position moves the task to the end of its new column.
func (s *TaskStore) Update(ctx context.Context, id int64, patch *types.TaskPatch) (*types.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := formatTime(s.clock.Now())
	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Title.Set {
		set("title", strings.TrimSpace(patch.Title.Value))
	}
	if patch.Description.Set {
		set("description", strArg(patch.Description.Ptr()))
	}
	if patch.Priority.Set {
		set("priority", strArg(patch.Priority.Ptr()))
	}
	if patch.DueDate.Set {
		set("due_date", strArg(patch.DueDate.Ptr()))
	}
	var tagList []string
	if patch.Tags.Set {
		tagList = tags.Normalize(patch.Tags.Value)
		set("tags", tags.Encode(tagList))
	}
	if patch.BlockedReason.Set {
		set("blocked_reason", strArg(patch.BlockedReason.Ptr()))
	}
	if patch.AssignedToType.Set {
		set("assigned_to_type", strArg(patch.AssignedToType.Ptr()))
	}
	if patch.AssignedToID.Set {
		set("assigned_to_id", strArg(patch.AssignedToID.Ptr()))
	}
	if patch.NonAgent.Set {
		set("non_agent", patch.NonAgent.Value)
	}
	if patch.Anchor.Set {
		set("anchor", strArg(patch.Anchor.Ptr()))
	}
	if patch.ProjectID.Set {
		set("project_id", intArg(patch.ProjectID.Ptr()))
	}
	if patch.ContextKey.Set {
		set("context_key", strArg(patch.ContextKey.Ptr()))
	}
	if patch.ContextType.Set {
		set("context_type", strArg(patch.ContextType.Ptr()))
	}

	if patch.Status.Set {
		status := string(patch.Status.Value)
		set("status", status)
		sets = append(sets, "completed_at = "+completedAtExpr)
		args = append(args, status, now)

		if !patch.Position.Set && patch.Status.Value != current.Status {
			next, err := s.NextPosition(ctx, patch.Status.Value)
			if err != nil {
				return nil, err
			}
			set("position", next)
		}
	}
	if patch.Position.Set {
		set("position", patch.Position.Value)
	}

	set("updated_at", now)
	args = append(args, id)

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}

	if patch.Tags.Set {
		if err := s.tags.Upsert(ctx, tagList); err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, id)
}

// Delete removes a task permanently and reports whether a row was removed.
func (s *TaskStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return n > 0, nil
}

// SetArchived stamps or clears archived_at. Status is untouched; a task
// coming back from the archive is appended to the end of its column.
func (s *TaskStore) SetArchived(ctx context.Context, id int64, archived bool) (*types.Task, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := formatTime(s.clock.Now())
	var archivedAt any
	if archived {
		archivedAt = now
	}
	position := current.Position
	if !archived && current.IsArchived() {
		if position, err = s.NextPosition(ctx, current.Status); err != nil {
			return nil, err
		}
	}

	result, err := s.ex.ExecContext(ctx,
		`UPDATE tasks SET archived_at = ?, position = ?, updated_at = ? WHERE id = ?`,
		archivedAt, position, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to archive task %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, types.TaskNotFound(id)
	}
	return s.Get(ctx, id)
}

// ArchiveDone archives every non-archived done task, optionally limited to a
// project, and returns how many were archived.
func (s *TaskStore) ArchiveDone(ctx context.Context, projectID *int64) (int64, error) {
	now := formatTime(s.clock.Now())
	query := `UPDATE tasks SET archived_at = ?, updated_at = ?
		WHERE status = 'done' AND archived_at IS NULL`
	args := []any{now, now}
	if projectID != nil {
		query += ` AND project_id = ?`
		args = append(args, *projectID)
	}
	return s.exec(ctx, "archive done tasks", query, args...)
}

// BulkSetStatus moves every listed task to status, applying the completed_at
// rule per row. Moved tasks are appended to the end of the column in id order.
// Rows already in status are neither touched nor counted.
func (s *TaskStore) BulkSetStatus(ctx context.Context, ids []int64, status types.Status) (int64, error) {
	marks, idArgs := placeholders(ids)
	args := append(idArgs, string(status))
	rows, err := s.ex.QueryContext(ctx,
		`SELECT id FROM tasks WHERE id IN (`+marks+`) AND status IS NOT ? ORDER BY id`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to select tasks to move: %w", err)
	}
	var moving []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan task id: %w", err)
		}
		moving = append(moving, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to select tasks to move: %w", err)
	}
	if len(moving) == 0 {
		return 0, nil
	}

	next, err := s.NextPosition(ctx, status)
	if err != nil {
		return 0, err
	}
	now := formatTime(s.clock.Now())
	for k, id := range moving {
		_, err := s.ex.ExecContext(ctx, `
			UPDATE tasks SET status = ?, completed_at = `+completedAtExpr+`, position = ?, updated_at = ?
			WHERE id = ?`,
			string(status), string(status), now, next+int64(k), now, id)
		if err != nil {
			return 0, fmt.Errorf("failed to move task %d: %w", id, err)
		}
	}
	return int64(len(moving)), nil
}

// BulkAssign sets the assignee of every listed task. A nil assigneeType
// clears both assignee columns.
func (s *TaskStore) BulkAssign(ctx context.Context, ids []int64, assigneeType *types.AssigneeType, assigneeID *string) (int64, error) {
	if assigneeType == nil {
		assigneeID = nil
	}
	now := formatTime(s.clock.Now())
	typ, who := strArg(assigneeType), strArg(assigneeID)
	marks, idArgs := placeholders(ids)
	args := append([]any{typ, who, now}, idArgs...)
	args = append(args, typ, who)
	return s.exec(ctx, "bulk update assignee", `
		UPDATE tasks SET assigned_to_type = ?, assigned_to_id = ?, updated_at = ?
		WHERE id IN (`+marks+`)
		  AND (assigned_to_type IS NOT ? OR assigned_to_id IS NOT ?)`, args...)
}

// BulkSetProject moves every listed task to projectID (nil detaches).
func (s *TaskStore) BulkSetProject(ctx context.Context, ids []int64, projectID *int64) (int64, error) {
	now := formatTime(s.clock.Now())
	pid := intArg(projectID)
	marks, idArgs := placeholders(ids)
	args := append([]any{pid, now}, idArgs...)
	args = append(args, pid)
	return s.exec(ctx, "bulk update project", `
		UPDATE tasks SET project_id = ?, updated_at = ?
		WHERE id IN (`+marks+`) AND project_id IS NOT ?`, args...)
}

// BulkDelete removes every listed task.
func (s *TaskStore) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	marks, args := placeholders(ids)
	return s.exec(ctx, "bulk delete tasks", `DELETE FROM tasks WHERE id IN (`+marks+`)`, args...)
}

// Move places a task in a column at a position, applying the completed_at rule.
func (s *TaskStore) Move(ctx context.Context, item types.ReorderItem) error {
	now := formatTime(s.clock.Now())
	status := string(item.Status)
	n, err := s.exec(ctx, "move task", `
		UPDATE tasks SET status = ?, position = ?, completed_at = `+completedAtExpr+`, updated_at = ?
		WHERE id = ?`,
		status, item.Position, status, now, now, item.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.TaskNotFound(item.ID)
	}
	return nil
}

// DetachProject clears project_id on every task of a project.
func (s *TaskStore) DetachProject(ctx context.Context, projectID int64) (int64, error) {
	now := formatTime(s.clock.Now())
	return s.exec(ctx, "detach project tasks",
		`UPDATE tasks SET project_id = NULL, updated_at = ? WHERE project_id = ?`, now, projectID)
}

// DeleteByProject removes every task of a project.
func (s *TaskStore) DeleteByProject(ctx context.Context, projectID int64) (int64, error) {
	return s.exec(ctx, "delete project tasks", `DELETE FROM tasks WHERE project_id = ?`, projectID)
}

// Stats counts non-archived tasks per status and archived tasks overall.
func (s *TaskStore) Stats(ctx context.Context) (*types.Stats, error) {
	stats := &types.Stats{ByStatus: make(map[types.Status]int, len(types.Statuses))}
	for _, st := range types.Statuses {
		stats.ByStatus[st] = 0
	}

	rows, err := s.ex.QueryContext(ctx, `
		SELECT status, archived_at IS NOT NULL, COUNT(*)
		FROM tasks GROUP BY status, archived_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var archived bool
		var count int
		if err := rows.Scan(&status, &archived, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task counts: %w", err)
		}
		stats.Total += count
		if archived {
			stats.Archived += count
			continue
		}
		stats.ByStatus[types.Status(status)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task counts: %w", err)
	}
	return stats, nil
}

// Count returns the total number of tasks.
func (s *TaskStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

func (s *TaskStore) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	result, err := s.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return n, nil
}

// scanTasks is a helper function to scan multiple tasks from query results.
func scanTasks(rows *sql.Rows) ([]*types.Task, error) {
	tasks := []*types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row scanner) (*types.Task, error) {
	var task types.Task
	var status, createdAt, updatedAt string
	var description, priority, dueDate, tagsJSON, blockedReason sql.NullString
	var assignedType, assignedID, anchor, contextKey, contextType sql.NullString
	var completedAt, archivedAt sql.NullString
	var projectID sql.NullInt64

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&status,
		&priority,
		&dueDate,
		&tagsJSON,
		&blockedReason,
		&assignedType,
		&assignedID,
		&task.NonAgent,
		&anchor,
		&task.Position,
		&projectID,
		&contextKey,
		&contextType,
		&createdAt,
		&updatedAt,
		&completedAt,
		&archivedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = types.Status(status)
	task.Description = nullString(description)
	task.DueDate = nullString(dueDate)
	task.BlockedReason = nullString(blockedReason)
	task.AssignedToID = nullString(assignedID)
	task.Anchor = nullString(anchor)
	task.ContextKey = nullString(contextKey)
	task.ContextType = nullString(contextType)
	task.ProjectID = nullInt(projectID)
	task.Tags = tags.Decode(tagsJSON.String)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	task.CompletedAt = nullTime(completedAt)
	task.ArchivedAt = nullTime(archivedAt)

	if priority.Valid {
		p := types.Priority(priority.String)
		task.Priority = &p
	}
	if assignedType.Valid {
		a := types.AssigneeType(assignedType.String)
		task.AssignedToType = &a
	}

	return &task, nil
}

// strArg converts an optional string-kinded value into a driver argument.
func strArg[T ~string](p *T) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func intArg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
