// Package transfer moves a board in and out of the database as JSONL.
//
// An export holds one line per project followed by one line per task,
// archived tasks included. Every line carries a "kind" field naming its
// record type. Import recreates the board inside a single transaction:
// projects are matched by slug and task project references are remapped to
// the ids they receive locally.
package transfer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// Record kinds.
const (
	KindProject = "project"
	KindTask    = "task"
)

// maxLineBytes bounds a single JSONL line; descriptions can be long.
const maxLineBytes = 4 << 20

// ProjectRecord is the JSONL form of a project.
type ProjectRecord struct {
	Kind string `json:"kind"`
	types.Project
}

// TaskRecord is the JSONL form of a task. Derived anchor fields are never
// exported.
type TaskRecord struct {
	Kind           string              `json:"kind"`
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	Description    *string             `json:"description,omitempty"`
	Status         types.Status        `json:"status"`
	Priority       *types.Priority     `json:"priority,omitempty"`
	DueDate        *string             `json:"due_date,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	BlockedReason  *string             `json:"blocked_reason,omitempty"`
	AssignedToType *types.AssigneeType `json:"assigned_to_type,omitempty"`
	AssignedToID   *string             `json:"assigned_to_id,omitempty"`
	NonAgent       bool                `json:"non_agent,omitempty"`
	Anchor         *string             `json:"anchor,omitempty"`
	Position       int64               `json:"position"`
	ProjectID      *int64              `json:"project_id,omitempty"`
	ContextKey     *string             `json:"context_key,omitempty"`
	ContextType    *string             `json:"context_type,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	ArchivedAt     *time.Time          `json:"archived_at,omitempty"`
}

// ExportResult counts the records written.
type ExportResult struct {
	Projects int `json:"projects"`
	Tasks    int `json:"tasks"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	ProjectsCreated int `json:"projects_created"`
	ProjectsReused  int `json:"projects_reused"`
	TasksImported   int `json:"tasks_imported"`
}

func newTaskRecord(t *types.Task) *TaskRecord {
	return &TaskRecord{
		Kind:           KindTask,
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		DueDate:        t.DueDate,
		Tags:           t.Tags,
		BlockedReason:  t.BlockedReason,
		AssignedToType: t.AssignedToType,
		AssignedToID:   t.AssignedToID,
		NonAgent:       t.NonAgent,
		Anchor:         t.Anchor,
		Position:       t.Position,
		ProjectID:      t.ProjectID,
		ContextKey:     t.ContextKey,
		ContextType:    t.ContextType,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CompletedAt:    t.CompletedAt,
		ArchivedAt:     t.ArchivedAt,
	}
}

// task converts the record back into a task, checking its content the same
// way a create request is checked.
func (r *TaskRecord) task() (*types.Task, error) {
	in := &types.TaskInput{
		Title:          r.Title,
		Status:         r.Status,
		Priority:       r.Priority,
		DueDate:        r.DueDate,
		AssignedToType: r.AssignedToType,
		Position:       &r.Position,
	}
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t := &types.Task{
		Title:          in.Title,
		Description:    r.Description,
		Status:         in.Status,
		Priority:       r.Priority,
		DueDate:        r.DueDate,
		Tags:           r.Tags,
		BlockedReason:  r.BlockedReason,
		AssignedToType: r.AssignedToType,
		AssignedToID:   r.AssignedToID,
		NonAgent:       r.NonAgent,
		Anchor:         r.Anchor,
		Position:       r.Position,
		ContextKey:     r.ContextKey,
		ContextType:    r.ContextType,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CompletedAt:    r.CompletedAt,
		ArchivedAt:     r.ArchivedAt,
	}

	// completed_at is set exactly when the task is done.
	switch {
	case t.Status != types.StatusDone:
		t.CompletedAt = nil
	case t.CompletedAt == nil && !t.UpdatedAt.IsZero():
		completed := t.UpdatedAt
		t.CompletedAt = &completed
	case t.CompletedAt == nil:
		completed := time.Now().UTC()
		t.CompletedAt = &completed
	}
	return t, nil
}

// Export writes every project and every task, archived ones included, to w.
func Export(ctx context.Context, db *store.DB, w io.Writer) (*ExportResult, error) {
	projects, err := db.Projects().List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := db.Tasks().List(ctx, types.TaskFilter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	result := &ExportResult{}

	for _, p := range projects {
		if err := enc.Encode(&ProjectRecord{Kind: KindProject, Project: *p}); err != nil {
			return nil, fmt.Errorf("failed to write project %d: %w", p.ID, err)
		}
		result.Projects++
	}
	for _, t := range tasks {
		if err := enc.Encode(newTaskRecord(t)); err != nil {
			return nil, fmt.Errorf("failed to write task %d: %w", t.ID, err)
		}
		result.Tasks++
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}
	return result, nil
}

// Import reads JSONL from r and recreates its projects and tasks in one
// transaction. Nothing is written when any line is rejected.
func Import(ctx context.Context, db *store.DB, r io.Reader) (*ImportResult, error) {
	projects, tasks, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err = db.WithTx(ctx, func(tx *store.Tx) error {
		remap := make(map[int64]int64, len(projects))

		for _, line := range projects {
			p := line.record
			existing, err := tx.Projects.GetBySlug(ctx, p.Slug)
			if err != nil {
				return err
			}
			if existing != nil {
				remap[p.ID] = existing.ID
				result.ProjectsReused++
				continue
			}

			created, err := tx.Projects.Create(ctx, &types.ProjectInput{
				Slug:        p.Slug,
				Name:        p.Name,
				Path:        p.Path,
				Description: p.Description,
				Icon:        p.Icon,
				Color:       p.Color,
			})
			if err != nil {
				return lineError(line.num, err)
			}
			remap[p.ID] = created.ID
			result.ProjectsCreated++
		}

		for _, line := range tasks {
			t, err := line.record.task()
			if err != nil {
				return lineError(line.num, err)
			}
			if old := line.record.ProjectID; old != nil {
				id, ok := remap[*old]
				if !ok {
					return lineError(line.num, types.NewValidationError("project_id",
						"project %d is not part of the import", *old))
				}
				t.ProjectID = &id
			}
			if _, err := tx.Tasks.Restore(ctx, t); err != nil {
				return err
			}
			result.TasksImported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type numbered[T any] struct {
	num    int
	record T
}

// readRecords parses every line before anything is written so that a
// malformed file is rejected as a whole.
func readRecords(r io.Reader) ([]numbered[*ProjectRecord], []numbered[*TaskRecord], error) {
	var projects []numbered[*ProjectRecord]
	var tasks []numbered[*TaskRecord]

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var head struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal([]byte(line), &head); err != nil {
			return nil, nil, types.NewValidationError("", "line %d: invalid JSON: %v", lineNum, err)
		}

		switch head.Kind {
		case KindProject:
			var rec ProjectRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, nil, types.NewValidationError("", "line %d: invalid project: %v", lineNum, err)
			}
			projects = append(projects, numbered[*ProjectRecord]{lineNum, &rec})
		case KindTask:
			var rec TaskRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, nil, types.NewValidationError("", "line %d: invalid task: %v", lineNum, err)
			}
			tasks = append(tasks, numbered[*TaskRecord]{lineNum, &rec})
		default:
			return nil, nil, types.NewValidationError("kind", "line %d: unknown record kind %q", lineNum, head.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read import at line %d: %w", lineNum+1, err)
	}
	return projects, tasks, nil
}

// lineError prefixes client errors with their line number and passes storage
// faults through unchanged.
func lineError(num int, err error) error {
	if !types.IsClientError(err) {
		return err
	}
	if verr, ok := err.(*types.ValidationError); ok {
		return types.NewValidationError(verr.Field, "line %d: %s", num, verr.Message)
	}
	return fmt.Errorf("line %d: %w", num, err)
}
