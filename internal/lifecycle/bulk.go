package lifecycle

import (
	"context"

	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/store"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// Bulk operations validate everything up front, then apply one target value
// to every listed task inside a single transaction. Ids with no task are
// skipped. The returned count is the number of rows that actually changed.

// BulkUpdateStatus moves every listed task to status.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []int64, status types.Status) (int64, error) {
	if err := validateIDs(ids); err != nil {
		return 0, err
	}
	if !status.Valid() {
		return 0, types.NewValidationError("status", "invalid status %q: must be one of backlog, in_progress, review, done", status)
	}

	var n int64
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = tx.Tasks.BulkSetStatus(ctx, ids, status)
		return err
	})
	if err != nil {
		return 0, s.fault("bulk update status", err)
	}

	s.emit(events.TasksBulkUpdated, map[string]any{"status_updated": n, "status": status})
	return n, nil
}

// BulkAssign sets the assignee of every listed task. A nil assigneeType
// unassigns and ignores assigneeID.
func (s *Service) BulkAssign(ctx context.Context, ids []int64, assigneeType *types.AssigneeType, assigneeID *string) (int64, error) {
	if err := validateIDs(ids); err != nil {
		return 0, err
	}
	if assigneeType != nil && !assigneeType.Valid() {
		return 0, types.NewValidationError("assigned_to_type", "invalid assignee type %q: must be agent or human", *assigneeType)
	}

	var n int64
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = tx.Tasks.BulkAssign(ctx, ids, assigneeType, assigneeID)
		return err
	})
	if err != nil {
		return 0, s.fault("bulk assign", err)
	}

	if assigneeType == nil {
		assigneeID = nil
	}
	s.emit(events.TasksBulkUpdated, map[string]any{
		"assignee_updated": n,
		"assigned_to_type": assigneeType,
		"assigned_to_id":   assigneeID,
	})
	return n, nil
}

// BulkSetProject moves every listed task into a project, or out of any
// project when projectID is nil.
func (s *Service) BulkSetProject(ctx context.Context, ids []int64, projectID *int64) (int64, error) {
	if err := validateIDs(ids); err != nil {
		return 0, err
	}
	if projectID != nil && *projectID <= 0 {
		return 0, types.NewValidationError("project_id", "invalid project id %d", *projectID)
	}

	var n int64
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		var err error
		n, err = tx.Tasks.BulkSetProject(ctx, ids, projectID)
		return err
	})
	if err != nil {
		return 0, s.fault("bulk set project", err)
	}

	s.emit(events.TasksBulkUpdated, map[string]any{"project_updated": n, "project_id": projectID})
	return n, nil
}

// BulkDelete removes every listed task.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	if err := validateIDs(ids); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = tx.Tasks.BulkDelete(ctx, ids)
		return err
	})
	if err != nil {
		return 0, s.fault("bulk delete", err)
	}

	s.emit(events.TasksBulkUpdated, map[string]any{"deleted": n, "ids": ids})
	return n, nil
}
