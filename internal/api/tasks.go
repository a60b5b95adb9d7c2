package api

import (
	"net/http"
	"strconv"

	"github.com/mschirtzinger/taskboard/internal/types"
)

func parseTaskFilter(r *http.Request) (types.TaskFilter, error) {
	q := r.URL.Query()
	var filter types.TaskFilter

	if raw := q.Get("status"); raw != "" {
		status, err := types.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := q.Get("assigned_to_type"); raw != "" {
		typ, err := types.ParseAssigneeType(raw)
		if err != nil {
			return filter, err
		}
		filter.AssignedToType = typ
	}
	if raw := q.Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, types.NewValidationError("project_id", "invalid project id %q", raw)
		}
		filter.ProjectID = &id
	}
	filter.AssignedToID = q.Get("assigned_to_id")
	filter.ContextKey = q.Get("context_key")
	filter.ContextType = q.Get("context_type")

	archived, err := queryBool(r, "include_archived")
	if err != nil {
		return filter, err
	}
	filter.IncludeArchived = archived
	return filter, nil
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		respondError(w, err)
		return
	}
	enrich, err := queryBool(r, "resolve_anchor")
	if err != nil {
		respondError(w, err)
		return
	}

	tasks, err := a.svc.ListTasks(r.Context(), filter, enrich)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, tasks)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	enrich, err := queryBool(r, "resolve_anchor")
	if err != nil {
		respondError(w, err)
		return
	}

	task, err := a.svc.GetTask(r.Context(), id, enrich)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, task)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var in types.TaskInput
	if err := decodeBody(r, &in, false); err != nil {
		respondError(w, err)
		return
	}

	task, err := a.svc.CreateTask(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var patch types.TaskPatch
	if err := decodeBody(r, &patch, false); err != nil {
		respondError(w, err)
		return
	}

	task, err := a.svc.UpdateTask(r.Context(), id, &patch)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, task)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := a.svc.DeleteTask(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]any{"deleted": true, "id": id})
}

func (a *API) archiveTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	task, err := a.svc.ArchiveTask(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, task)
}

func (a *API) unarchiveTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	task, err := a.svc.UnarchiveTask(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, task)
}

func (a *API) archiveDone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID *int64 `json:"project_id"`
	}
	if err := decodeBody(r, &body, true); err != nil {
		respondError(w, err)
		return
	}

	n, err := a.svc.ArchiveDone(r.Context(), body.ProjectID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int64{"archived": n})
}

func (a *API) reorder(w http.ResponseWriter, r *http.Request) {
	var items []types.ReorderItem
	if err := decodeBody(r, &items, false); err != nil {
		respondError(w, err)
		return
	}
	if err := a.svc.Reorder(r.Context(), items); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int{"updated": len(items)})
}

func (a *API) bulkStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []int64      `json:"ids"`
		Status types.Status `json:"status"`
	}
	if err := decodeBody(r, &body, false); err != nil {
		respondError(w, err)
		return
	}

	n, err := a.svc.BulkUpdateStatus(r.Context(), body.IDs, body.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int64{"updated": n})
}

func (a *API) bulkAssign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs            []int64             `json:"ids"`
		AssignedToType *types.AssigneeType `json:"assigned_to_type"`
		AssignedToID   *string             `json:"assigned_to_id"`
	}
	if err := decodeBody(r, &body, false); err != nil {
		respondError(w, err)
		return
	}

	n, err := a.svc.BulkAssign(r.Context(), body.IDs, body.AssignedToType, body.AssignedToID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int64{"updated": n})
}

func (a *API) bulkProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs       []int64 `json:"ids"`
		ProjectID *int64  `json:"project_id"`
	}
	if err := decodeBody(r, &body, false); err != nil {
		respondError(w, err)
		return
	}

	n, err := a.svc.BulkSetProject(r.Context(), body.IDs, body.ProjectID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int64{"updated": n})
}

func (a *API) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeBody(r, &body, false); err != nil {
		respondError(w, err)
		return
	}

	n, err := a.svc.BulkDelete(r.Context(), body.IDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int64{"deleted": n})
}

func (a *API) listTags(w http.ResponseWriter, r *http.Request) {
	names, err := a.svc.ListTags(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, names)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, stats)
}
