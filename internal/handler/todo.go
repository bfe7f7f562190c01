package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// TodoHandler serves the relay organising board's task list.
type TodoHandler struct {
	todos   *service.TodoService
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewTodoHandler(todos *service.TodoService, authSvc *service.AuthService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, authSvc: authSvc, logger: logger}
}

// HandleList returns all tasks, incomplete first.
//
// HTTP: GET /api/todos (auth required)
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// HandleAdd creates a task.
//
// HTTP: POST /api/todos (auth required)
// Body: {"text":"..."}
func (h *TodoHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Add(r.Context(), profile, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// HandleToggleComplete flips a task's done state. Any member may.
//
// HTTP: POST /api/todos/{id}/toggle (auth required)
// Response: {"completed":true}
func (h *TodoHandler) HandleToggleComplete(w http.ResponseWriter, r *http.Request) {
	completed, err := h.todos.ToggleComplete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

// HandleAssign sets or clears who a task is assigned to.
//
// HTTP: PUT /api/todos/{id}/assignee (auth required)
// Body: {"assigneeId":"...","assigneeName":"..."} — empty values clear.
func (h *TodoHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssigneeID   string `json:"assigneeId"`
		AssigneeName string `json:"assigneeName"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.todos.Assign(r.Context(), r.PathValue("id"), body.AssigneeID, body.AssigneeName); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a task (creator or admin only).
//
// HTTP: DELETE /api/todos/{id} (auth required)
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if err := h.todos.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
