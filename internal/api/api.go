// Package api exposes the lifecycle service as JSON over HTTP.
//
// Handlers only decode, delegate and encode. Validation errors map to 400,
// not-found to 404, and anything else to a generic 500 whose cause is logged
// by the service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mschirtzinger/taskboard/internal/lifecycle"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// API holds the route handlers.
type API struct {
	svc    *lifecycle.Service
	logger zerolog.Logger
}

// New returns the API routes as an http.Handler rooted at /api/.
func New(svc *lifecycle.Service, logger zerolog.Logger) http.Handler {
	a := &API{svc: svc, logger: logger.With().Str("component", "api").Logger()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", a.listTasks)
	mux.HandleFunc("POST /api/tasks", a.createTask)
	mux.HandleFunc("POST /api/tasks/archive-done", a.archiveDone)
	mux.HandleFunc("POST /api/tasks/reorder", a.reorder)
	mux.HandleFunc("POST /api/tasks/bulk/status", a.bulkStatus)
	mux.HandleFunc("POST /api/tasks/bulk/assign", a.bulkAssign)
	mux.HandleFunc("POST /api/tasks/bulk/project", a.bulkProject)
	mux.HandleFunc("POST /api/tasks/bulk/delete", a.bulkDelete)
	mux.HandleFunc("GET /api/tasks/{id}", a.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", a.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", a.deleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/archive", a.archiveTask)
	mux.HandleFunc("POST /api/tasks/{id}/unarchive", a.unarchiveTask)

	mux.HandleFunc("GET /api/projects", a.listProjects)
	mux.HandleFunc("POST /api/projects", a.createProject)
	mux.HandleFunc("GET /api/projects/{id}", a.getProject)
	mux.HandleFunc("PATCH /api/projects/{id}", a.updateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", a.deleteProject)

	mux.HandleFunc("GET /api/tags", a.listTags)
	mux.HandleFunc("GET /api/stats", a.stats)

	return a.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, v any) {
	respondJSON(w, http.StatusOK, v)
}

// respondError maps err onto the error taxonomy.
func respondError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	var nferr *types.NotFoundError
	switch {
	case errors.As(err, &verr):
		body := map[string]string{"error": verr.Message}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		respondJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &nferr):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": nferr.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeBody reads a JSON body into v. An empty body is allowed when optional.
func decodeBody(r *http.Request, v any, optional bool) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return types.NewValidationError("body", "request body is required")
	}
	if err != nil {
		return types.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewValidationError("id", "invalid id %q", raw)
	}
	return id, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, types.NewValidationError(key, "invalid boolean %q", raw)
	}
	return v, nil
}
