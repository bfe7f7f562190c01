package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// StageHandler serves the Holmenkollstafetten relay signup board.
type StageHandler struct {
	stages  *service.StageService
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewStageHandler(stages *service.StageService, authSvc *service.AuthService, logger *slog.Logger) *StageHandler {
	return &StageHandler{stages: stages, authSvc: authSvc, logger: logger}
}

func stageNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		return 0, apperror.ValidationFailed("number", "stage number must be an integer")
	}
	return n, nil
}

// HandleList returns all 15 stages with their signups and lock-in state.
//
// HTTP: GET /api/stages (auth required)
func (h *StageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	stages, err := h.stages.Stages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// HandleSignUp registers the signed-in member for a stage.
//
// HTTP: POST /api/stages/{number}/signups (auth required)
func (h *StageHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	signup, err := h.stages.SignUp(r.Context(), number, profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signup)
}

// HandleGuestSignUp registers a guest runner, pending admin verification.
//
// HTTP: POST /api/stages/{number}/guests (auth required)
// Body: {"name":"...","email":"..."}
//
// Any signed-in member can add a guest — friends of the club run with us —
// but the guest stays unverified until an admin confirms them.
func (h *StageHandler) HandleGuestSignUp(w http.ResponseWriter, r *http.Request) {
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	signup, err := h.stages.SignUpGuest(r.Context(), number, body.Name, body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signup)
}

// HandleRemoveSignup withdraws a signup. Owners remove their own; admins
// remove anyone's.
//
// HTTP: DELETE /api/stages/{number}/signups/{id} (auth required)
func (h *StageHandler) HandleRemoveSignup(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.stages.RemoveSignup(r.Context(), number, r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerifyGuest marks a guest signup as verified.
//
// HTTP: POST /api/stages/{number}/signups/{id}/verify (admin)
func (h *StageHandler) HandleVerifyGuest(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.stages.VerifyGuest)
}

// HandleLockIn confirms a verified signup as the stage's official runner.
//
// HTTP: POST /api/stages/{number}/signups/{id}/lock (admin)
func (h *StageHandler) HandleLockIn(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.stages.LockIn)
}

// adminAction factors the shared shape of verify and lock-in: both act on
// a (stage, signup) pair and both leave authorization to the service.
func (h *StageHandler) adminAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, stageNumber int, signupID, callerUID string) error,
) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := action(r.Context(), number, r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnlock clears a stage's locked-in runner and payment flag.
//
// HTTP: POST /api/stages/{number}/unlock (admin)
func (h *StageHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.stages.Unlock(r.Context(), number, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTogglePayment flips a locked stage's payment-received flag.
//
// HTTP: POST /api/stages/{number}/payment (admin)
// Response: {"paymentReceived":true}
func (h *StageHandler) HandleTogglePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	number, err := stageNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	received, err := h.stages.TogglePayment(r.Context(), number, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paymentReceived": received})
}

// HandleAssignees returns the identities that can be assigned a todo.
//
// HTTP: GET /api/stages/assignees (auth required)
func (h *StageHandler) HandleAssignees(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	assignees, err := h.stages.Assignees(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignees)
}
