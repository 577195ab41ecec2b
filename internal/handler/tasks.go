package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/service"
)

// TaskHandler serves the to-do list API.
//
// ROUTES:
//
//	GET    /api/tasks?status=pending|completed  list (all when status is absent)
//	POST   /api/tasks                           create
//	DELETE /api/tasks?status=pending|completed  clear one list
//	GET    /api/tasks/stats                     counters
//	GET    /api/tasks/{id}                      one task
//	PUT    /api/tasks/{id}                      edit
//	DELETE /api/tasks/{id}                      delete
//	POST   /api/tasks/{id}/toggle               pending <-> completed
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// clearResponse reports how many tasks a bulk clear removed.
type clearResponse struct {
	Removed int `json:"removed"`
}

// HandleList returns the tasks, optionally filtered by status.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var tasks []model.Task
	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
		tasks = h.tasks.List()
	case "pending":
		tasks = h.tasks.Pending()
	case "completed":
		tasks = h.tasks.Completed()
	default:
		writeError(w, apperror.ValidationFailed("status", "status must be pending or completed"))
		return
	}

	// An empty list is [] in JSON, never null.
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleStats returns the total, pending and completed counts.
func (h *TaskHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.Stats())
}

// HandleGet returns one task.
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Find(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleCreate adds a task.
//
// REQUEST BODY: {"title": "...", "description": "...", "dueDate": "2025-03-05"}
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Add(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// HandleUpdate replaces a task's editable fields.
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleDelete removes a task. Deleting a missing task still answers 204.
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggle flips a task's completion.
func (h *TaskHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.ToggleCompletion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleClear removes every pending or every completed task. The status
// parameter is required so a bare DELETE cannot wipe the whole list.
func (h *TaskHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	var (
		n   int
		err error
	)
	switch r.URL.Query().Get("status") {
	case "pending":
		n, err = h.tasks.ClearPending(r.Context())
	case "completed":
		n, err = h.tasks.ClearCompleted(r.Context())
	default:
		err = apperror.ValidationFailed("status", "status must be pending or completed")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Removed: n})
}
