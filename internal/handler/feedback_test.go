package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/handler"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository/sqlite"
	"github.com/sakif/runclub/internal/service"
)

func newFeedbackTestEnv(t *testing.T) (*handler.FeedbackHandler, *service.AuthService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	authSvc := service.NewAuthService(db, db, logger)
	feedbackSvc := service.NewFeedbackService(db, db, logger)

	return handler.NewFeedbackHandler(feedbackSvc, authSvc, logger), authSvc
}

func postFeedback(h *handler.FeedbackHandler, body string, mutate func(*http.Request) *http.Request) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		req = mutate(req)
	}
	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, req)
	return rr
}

func TestFeedbackHandler_Submit(t *testing.T) {
	t.Run("signed-in member uses stored profile", func(t *testing.T) {
		h, authSvc := newFeedbackTestEnv(t)
		_, err := authSvc.SignIn(t.Context(), &auth.FacebookUser{ID: "fb-1", Name: "Kari"})
		require.NoError(t, err)

		rr := postFeedback(h, `{"type":"bug","feedback":"export button broken","page":"/orders"}`,
			func(r *http.Request) *http.Request {
				return r.WithContext(auth.ContextWithUserID(r.Context(), "fb-1"))
			})

		assert.Equal(t, http.StatusCreated, rr.Code)
		var fb model.Feedback
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&fb))
		assert.Equal(t, "fb-1", fb.UserID)
		assert.Equal(t, "Kari", fb.UserName, "submitter name must come from the stored profile")
	})

	t.Run("signed-out visitor submits under the form name", func(t *testing.T) {
		h, _ := newFeedbackTestEnv(t)

		rr := postFeedback(h, `{"type":"feature","feedback":"dark mode please","name":"Ola"}`, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var fb model.Feedback
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&fb))
		assert.Equal(t, model.AnonymousUserID, fb.UserID)
		assert.Equal(t, "Ola", fb.UserName)
	})

	t.Run("signed-out visitor without a name is rejected", func(t *testing.T) {
		h, _ := newFeedbackTestEnv(t)

		rr := postFeedback(h, `{"type":"feature","feedback":"dark mode please"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		h, _ := newFeedbackTestEnv(t)

		rr := postFeedback(h, `{"feedback":"something broke","name":"Ola"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
