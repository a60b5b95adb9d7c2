package lifecycle

import (
	"context"

	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// ProjectDeletion summarizes what DeleteProject did to linked tasks.
// Exactly one of TasksDeleted and TasksDetached is non-zero when tasks were linked.
type ProjectDeletion struct {
	ProjectID     int64 `json:"project_id"`
	TasksDeleted  int64 `json:"tasks_deleted"`
	TasksDetached int64 `json:"tasks_detached"`
}

// ListProjects returns every project ordered by name.
func (s *Service) ListProjects(ctx context.Context) ([]*types.Project, error) {
	projects, err := s.db.Projects().List(ctx)
	if err != nil {
		return nil, s.fault("list projects", err)
	}
	return projects, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	project, err := s.db.Projects().Get(ctx, id)
	if err != nil {
		return nil, s.fault("get project", err)
	}
	return project, nil
}

// CreateProject inserts a project, then emits projects_updated.
func (s *Service) CreateProject(ctx context.Context, in *types.ProjectInput) (*types.Project, error) {
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var project *types.Project
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		project, err = tx.Projects.Create(ctx, in)
		return err
	})
	if err != nil {
		return nil, s.fault("create project", err)
	}

	s.emit(events.ProjectsUpdated, map[string]any{"action": "created", "project": project})
	return project, nil
}

// UpdateProject applies a partial patch, then emits projects_updated.
func (s *Service) UpdateProject(ctx context.Context, id int64, patch *types.ProjectPatch) (*types.Project, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var project *types.Project
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		project, err = tx.Projects.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, s.fault("update project", err)
	}

	s.emit(events.ProjectsUpdated, map[string]any{"action": "updated", "project": project})
	return project, nil
}

// DeleteProject removes a project. With cleanupTasks its tasks are deleted;
// otherwise they stay and lose their project_id. Never both.
func (s *Service) DeleteProject(ctx context.Context, id int64, cleanupTasks bool) (*ProjectDeletion, error) {
	result := &ProjectDeletion{ProjectID: id}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Projects.Get(ctx, id); err != nil {
			return err
		}

		var err error
		if cleanupTasks {
			result.TasksDeleted, err = tx.Tasks.DeleteByProject(ctx, id)
		} else {
			result.TasksDetached, err = tx.Tasks.DetachProject(ctx, id)
		}
		if err != nil {
			return err
		}
		return tx.Projects.Delete(ctx, id)
	})
	if err != nil {
		return nil, s.fault("delete project", err)
	}

	s.emit(events.ProjectsUpdated, map[string]any{"action": "deleted", "result": result})
	if result.TasksDeleted > 0 || result.TasksDetached > 0 {
		s.emit(events.TasksBulkUpdated, result)
	}
	return result, nil
}
