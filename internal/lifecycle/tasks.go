package lifecycle

import (
	"context"

	"github.com/mschirtzinger/taskboard/internal/anchor"
	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// ListTasks returns tasks matching filter. With enrich set, each task carries
// its resolved anchor.
func (s *Service) ListTasks(ctx context.Context, filter types.TaskFilter, enrich bool) ([]*types.Task, error) {
	tasks, err := s.db.Tasks().List(ctx, filter)
	if err != nil {
		return nil, s.fault("list tasks", err)
	}
	if !enrich {
		return tasks, nil
	}
	projects, err := s.db.Projects().Lookup(ctx)
	if err != nil {
		return nil, s.fault("list tasks", err)
	}
	return s.resolver.EnrichMany(tasks, anchor.LookupMap(projects), s.anchors.Current()), nil
}

// GetTask returns one task, optionally enriched.
func (s *Service) GetTask(ctx context.Context, id int64, enrich bool) (*types.Task, error) {
	task, err := s.db.Tasks().Get(ctx, id)
	if err != nil {
		return nil, s.fault("get task", err)
	}
	if enrich {
		if err := s.enrich(ctx, task); err != nil {
			return nil, s.fault("get task", err)
		}
	}
	return task, nil
}

// Enrich resolves the anchor of a task the caller already holds.
func (s *Service) Enrich(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := s.enrich(ctx, task); err != nil {
		return nil, s.fault("enrich task", err)
	}
	return task, nil
}

func (s *Service) enrich(ctx context.Context, task *types.Task) error {
	var lookup anchor.ProjectLookup
	if task.ProjectID != nil {
		project, err := s.db.Projects().Get(ctx, *task.ProjectID)
		if err != nil && !types.IsClientError(err) {
			return err
		}
		lookup = func(id int64) *types.Project {
			if project != nil && project.ID == id {
				return project
			}
			return nil
		}
	}
	s.resolver.Enrich(task, lookup, s.anchors.Current())
	return nil
}

// CreateTask validates and inserts a task, then emits task_created.
func (s *Service) CreateTask(ctx context.Context, in *types.TaskInput) (*types.Task, error) {
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var task *types.Task
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireProject(ctx, tx, in.ProjectID); err != nil {
			return err
		}
		var err error
		task, err = tx.Tasks.Create(ctx, in)
		return err
	})
	if err != nil {
		return nil, s.fault("create task", err)
	}

	s.emit(events.TaskCreated, task)
	return task, nil
}

// UpdateTask applies a partial patch, then emits task_updated.
func (s *Service) UpdateTask(ctx context.Context, id int64, patch *types.TaskPatch) (*types.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var task *types.Task
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if patch.ProjectID.Set {
			if err := requireProject(ctx, tx, patch.ProjectID.Ptr()); err != nil {
				return err
			}
		}
		var err error
		task, err = tx.Tasks.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, s.fault("update task", err)
	}

	s.emit(events.TaskUpdated, task)
	return task, nil
}

// DeleteTask removes a task permanently, then emits task_deleted.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		removed, err := tx.Tasks.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return types.TaskNotFound(id)
		}
		return nil
	})
	if err != nil {
		return s.fault("delete task", err)
	}

	s.emit(events.TaskDeleted, map[string]int64{"id": id})
	return nil
}

// ArchiveTask hides a task from default listings without touching its status.
func (s *Service) ArchiveTask(ctx context.Context, id int64) (*types.Task, error) {
	return s.setArchived(ctx, id, true)
}

// UnarchiveTask returns an archived task to default listings.
func (s *Service) UnarchiveTask(ctx context.Context, id int64) (*types.Task, error) {
	return s.setArchived(ctx, id, false)
}

func (s *Service) setArchived(ctx context.Context, id int64, archived bool) (*types.Task, error) {
	var task *types.Task
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		task, err = tx.Tasks.SetArchived(ctx, id, archived)
		return err
	})
	if err != nil {
		return nil, s.fault("archive task", err)
	}

	s.emit(events.TaskUpdated, task)
	return task, nil
}

// ArchiveDone archives every done task, optionally within one project.
func (s *Service) ArchiveDone(ctx context.Context, projectID *int64) (int64, error) {
	var n int64
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		var err error
		n, err = tx.Tasks.ArchiveDone(ctx, projectID)
		return err
	})
	if err != nil {
		return 0, s.fault("archive done", err)
	}

	s.emit(events.TasksBulkUpdated, map[string]int64{"archived_done": n})
	return n, nil
}

// Reorder persists a drag-and-drop batch. Every item is checked before any
// row moves; an unknown id fails the whole batch.
func (s *Service) Reorder(ctx context.Context, items []types.ReorderItem) error {
	if len(items) == 0 {
		return types.NewValidationError("items", "reorder requires at least one item")
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		if item.ID <= 0 {
			return types.NewValidationError("id", "invalid task id %d", item.ID)
		}
		if !item.Status.Valid() {
			return types.NewValidationError("status", "invalid status %q for task %d", item.Status, item.ID)
		}
		if item.Position < 0 {
			return types.NewValidationError("position", "position must be non-negative for task %d", item.ID)
		}
		ids[i] = item.ID
	}

	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		missing, err := tx.Tasks.MissingIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return types.TaskNotFound(missing[0])
		}
		for _, item := range items {
			if err := tx.Tasks.Move(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fault("reorder tasks", err)
	}

	s.emit(events.TasksBulkUpdated, map[string]int{"reordered": len(items)})
	return nil
}

// Stats reports task counts per column.
func (s *Service) Stats(ctx context.Context) (*types.Stats, error) {
	stats, err := s.db.Tasks().Stats(ctx)
	if err != nil {
		return nil, s.fault("stats", err)
	}
	return stats, nil
}

// ListTags returns the distinct tag registry, backfilling it from tasks when
// empty. The backfill runs in one transaction.
func (s *Service) ListTags(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		names, err = tx.Tags.List(ctx)
		return err
	})
	if err != nil {
		return nil, s.fault("list tags", err)
	}
	return names, nil
}
