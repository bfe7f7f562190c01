package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/handler"
	"github.com/sakif/runclub/internal/repository/sqlite"
	"github.com/sakif/runclub/internal/service"
)

// fakeOAuthProvider stands in for Facebook so callback tests can run the
// whole flow without the network.
type fakeOAuthProvider struct {
	user *auth.FacebookUser
	err  error
}

func (f *fakeOAuthProvider) AuthURL(state string) string {
	return "https://facebook.example/authorize?state=" + state
}

func (f *fakeOAuthProvider) Exchange(ctx context.Context, code string) (*auth.FacebookUser, error) {
	return f.user, f.err
}

type authTestEnv struct {
	handler *handler.AuthHandler
	authSvc *service.AuthService
}

func newAuthTestEnv(t *testing.T, provider handler.OAuthProvider) *authTestEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-test-secret-test-secret")
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, db, logger)

	return &authTestEnv{
		handler: handler.NewAuthHandler(provider, tokens, authSvc, logger),
		authSvc: authSvc,
	}
}

// callbackRequest builds a callback request with matching state and mode
// cookies, the way HandleLogin would have left them.
func callbackRequest(mode string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/facebook/callback?state=s1&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})
	req.AddCookie(&http.Cookie{Name: "oauth_mode", Value: mode})
	return req
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("success issues session cookie", func(t *testing.T) {
		provider := &fakeOAuthProvider{user: &auth.FacebookUser{ID: "fb-1", Name: "Kari", Email: "kari@example.com"}}
		env := newAuthTestEnv(t, provider)

		rr := httptest.NewRecorder()
		env.handler.HandleCallback(rr, callbackRequest("redirect"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))

		var session *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == auth.SessionCookie {
				session = c
			}
		}
		require.NotNil(t, session, "callback must set the session cookie")
		assert.NotEmpty(t, session.Value)

		profile, err := env.authSvc.Profile(t.Context(), "fb-1")
		require.NoError(t, err)
		assert.Equal(t, "Kari", profile.DisplayName)
	})

	t.Run("email conflict redirects with the message", func(t *testing.T) {
		provider := &fakeOAuthProvider{user: &auth.FacebookUser{ID: "fb-2", Name: "Other Kari", Email: "kari@example.com"}}
		env := newAuthTestEnv(t, provider)

		// kari@example.com is already owned by fb-1.
		_, err := env.authSvc.SignIn(t.Context(), &auth.FacebookUser{ID: "fb-1", Name: "Kari", Email: "kari@example.com"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		env.handler.HandleCallback(rr, callbackRequest("redirect"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		loc, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "conflict", loc.Query().Get("auth"))
		assert.Contains(t, loc.Query().Get("message"), "already exists")

		for _, c := range rr.Result().Cookies() {
			assert.NotEqual(t, auth.SessionCookie, c.Name, "a blocked sign-in must not issue a session")
		}
	})

	t.Run("email conflict in popup mode returns 409 with the message", func(t *testing.T) {
		provider := &fakeOAuthProvider{user: &auth.FacebookUser{ID: "fb-2", Name: "Other Kari", Email: "kari@example.com"}}
		env := newAuthTestEnv(t, provider)

		_, err := env.authSvc.SignIn(t.Context(), &auth.FacebookUser{ID: "fb-1", Name: "Kari", Email: "kari@example.com"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		env.handler.HandleCallback(rr, callbackRequest("popup"))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "auth-conflict")
		assert.Contains(t, rr.Body.String(), "already exists")
	})

	t.Run("other sign-in failures stay generic", func(t *testing.T) {
		// An empty provider ID fails sign-in validation, not the conflict check.
		provider := &fakeOAuthProvider{user: &auth.FacebookUser{Name: "Nobody"}}
		env := newAuthTestEnv(t, provider)

		rr := httptest.NewRecorder()
		env.handler.HandleCallback(rr, callbackRequest("redirect"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=failed", rr.Header().Get("Location"))
	})
}
