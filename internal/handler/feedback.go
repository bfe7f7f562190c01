package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// FeedbackHandler serves the site-wide feedback form.
type FeedbackHandler struct {
	feedback *service.FeedbackService
	authSvc  *service.AuthService
	logger   *slog.Logger
}

func NewFeedbackHandler(feedback *service.FeedbackService, authSvc *service.AuthService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, authSvc: authSvc, logger: logger}
}

// HandleSubmit records one feedback entry. Unlike the rest of the API this
// accepts signed-out visitors too: without a session, "name" must carry who
// is writing.
//
// HTTP: POST /api/feedback (auth optional)
// Body: {"type":"bug","feedback":"...","page":"/photos","name":"..."}
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type     string `json:"type"`
		Feedback string `json:"feedback"`
		Page     string `json:"page"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	profile, err := optionalProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	fb, err := h.feedback.Submit(r.Context(), profile, body.Type, body.Feedback, body.Page, body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

// HandleList returns every submission, newest first.
//
// HTTP: GET /api/feedback (auth required, admins only)
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	entries, err := h.feedback.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
