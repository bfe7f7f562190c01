package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// OAuthProvider is the part of the Facebook flow the handler needs:
// building the authorization URL and exchanging the callback code.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.FacebookUser, error)
}

// AuthHandler runs the Facebook OAuth login flow and session endpoints.
//
//   - HandleLogin    → redirect the browser (or popup) to Facebook
//   - HandleCallback → receive the code, exchange it, issue the JWT cookie
//   - HandleLogout   → clear the JWT cookie
//   - HandleMe       → return the signed-in member's profile
type AuthHandler struct {
	facebook OAuthProvider
	tokens   *auth.TokenService
	authSvc  *service.AuthService
	logger   *slog.Logger
}

func NewAuthHandler(
	facebook OAuthProvider,
	tokens *auth.TokenService,
	authSvc *service.AuthService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		facebook: facebook,
		tokens:   tokens,
		authSvc:  authSvc,
		logger:   logger,
	}
}

// loginMode decides how the OAuth window behaves. Desktop browsers get a
// popup window that closes itself after the callback; mobile browsers get
// a full-page redirect, since popups are unreliable there. An explicit
// ?mode= query overrides the User-Agent sniff.
func loginMode(r *http.Request) string {
	switch r.URL.Query().Get("mode") {
	case "popup":
		return "popup"
	case "redirect":
		return "redirect"
	}
	if strings.Contains(r.UserAgent(), "Mobile") {
		return "redirect"
	}
	return "popup"
}

// HandleLogin sends the member to Facebook's authorization page.
//
// HTTP: GET /auth/facebook/login?mode=popup|redirect
//
// A random state value goes into a short-lived HttpOnly cookie; the
// callback verifies Facebook echoed the same value back, which stops a
// CSRF attacker from completing a flow the member never started. The
// chosen mode rides in a second cookie so the callback knows whether to
// close a popup or redirect the whole page.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_mode",
		Value:    loginMode(r),
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.facebook.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/facebook/callback?code=xxx&state=yyy
//
// Order matters in the success path: the profile is stored first, the
// session cookie is issued after. A client can therefore never hold a
// valid session whose profile lookup would miss.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	mode := "popup"
	if modeCookie, err := r.Cookie("oauth_mode"); err == nil && modeCookie.Value == "redirect" {
		mode = "redirect"
	}

	// Both cookies are single-use.
	clearCookie(w, "oauth_state")
	clearCookie(w, "oauth_mode")

	// The member clicked Cancel on Facebook's dialog. Not an error — just
	// finish the flow quietly with no session.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: member denied authorization", slog.String("error", errParam))
		h.finish(w, r, mode, "/")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	fbUser, err := h.facebook.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Facebook exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	profile, err := h.authSvc.SignIn(r.Context(), fbUser)
	if err != nil {
		// An email owned by another account blocks sign-in with an
		// explanation the member must see; everything else is a generic
		// failure.
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrConflict) && errors.As(err, &appErr) {
			h.logger.Warn("auth callback: sign-in blocked",
				slog.String("uid", fbUser.ID),
				slog.String("reason", appErr.Message),
			)
			h.finishConflict(w, r, mode, appErr.Message)
			return
		}
		h.logger.Error("auth callback: sign-in failed",
			slog.String("uid", fbUser.ID),
			slog.String("error", err.Error()),
		)
		h.finish(w, r, mode, "/?auth=failed")
		return
	}

	tokenStr, err := h.tokens.Generate(profile.UID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // requires HTTPS; enable in production
	})

	h.finish(w, r, mode, "/")
}

// popupCloseTmpl is served to the OAuth popup window after the callback.
// The opener polls /api/me, so all the popup has to do is close.
var popupCloseTmpl = template.Must(template.New("close").Parse(
	`<!doctype html><html><body><script>
if (window.opener) { window.opener.postMessage({type: "auth-complete"}, {{.Origin}}); }
window.close();
</script></body></html>`))

func (h *AuthHandler) finish(w http.ResponseWriter, r *http.Request, mode, target string) {
	if mode == "redirect" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	origin := fmt.Sprintf("%s://%s", schemeOf(r), r.Host)
	if err := popupCloseTmpl.Execute(w, map[string]string{"Origin": origin}); err != nil {
		h.logger.Error("auth callback: rendering popup close page", slog.String("error", err.Error()))
	}
}

// popupConflictTmpl is served, with a 409 status, when sign-in was blocked
// because the email belongs to another account. The popup hands the
// message to the opener so the page can show it, then closes.
var popupConflictTmpl = template.Must(template.New("conflict").Parse(
	`<!doctype html><html><body><script>
if (window.opener) { window.opener.postMessage({type: "auth-conflict", message: {{.Message}}}, {{.Origin}}); }
window.close();
</script></body></html>`))

func (h *AuthHandler) finishConflict(w http.ResponseWriter, r *http.Request, mode, message string) {
	if mode == "redirect" {
		http.Redirect(w, r, "/?auth=conflict&message="+url.QueryEscape(message), http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusConflict)
	origin := fmt.Sprintf("%s://%s", schemeOf(r), r.Host)
	if err := popupConflictTmpl.Execute(w, map[string]string{"Origin": origin, "Message": message}); err != nil {
		h.logger.Error("auth callback: rendering popup conflict page", slog.String("error", err.Error()))
	}
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		return "https"
	}
	return "http"
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// The JWT stays technically valid until it expires, but without the
// cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, auth.SessionCookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in member's stored profile plus their admin
// flag, so the frontend can decide which controls to show.
//
// HTTP: GET /api/me (auth required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	profile, err := h.authSvc.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: profile lookup failed", slog.String("uid", userID))
		writeError(w, err)
		return
	}

	isAdmin, err := h.authSvc.IsAdmin(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profile": profile,
		"isAdmin": isAdmin,
	})
}
