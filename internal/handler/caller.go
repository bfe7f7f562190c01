package handler

import (
	"net/http"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/service"
)

// callerProfile resolves the request's session to the member's stored
// profile. Services stamp owner fields (name, photo) from the stored
// profile rather than trusting anything the client sent.
func callerProfile(r *http.Request, authSvc *service.AuthService) (*model.UserProfile, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, apperror.Forbidden("sign in to do this")
	}
	return authSvc.Profile(r.Context(), userID)
}

// optionalProfile is callerProfile for endpoints that accept signed-out
// visitors: no session means a nil profile, not an error.
func optionalProfile(r *http.Request, authSvc *service.AuthService) (*model.UserProfile, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, nil
	}
	return authSvc.Profile(r.Context(), userID)
}
