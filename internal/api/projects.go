package api

import (
	"net/http"

	"github.com/mschirtzinger/taskboard/internal/types"
)

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.svc.ListProjects(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, projects)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	project, err := a.svc.GetProject(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, project)
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var in types.ProjectInput
	if err := decodeBody(r, &in, false); err != nil {
		respondError(w, err)
		return
	}
	project, err := a.svc.CreateProject(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var patch types.ProjectPatch
	if err := decodeBody(r, &patch, false); err != nil {
		respondError(w, err)
		return
	}
	project, err := a.svc.UpdateProject(r.Context(), id, &patch)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, project)
}

// deleteProject honors ?cleanupTasks=true to delete linked tasks; by default
// they are detached.
func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	cleanup, err := queryBool(r, "cleanupTasks")
	if err != nil {
		respondError(w, err)
		return
	}
	result, err := a.svc.DeleteProject(r.Context(), id, cleanup)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}
