package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/runclub/internal/service"
)

// PresenceHandler serves the "currently viewing" strip on the order page.
type PresenceHandler struct {
	presence *service.PresenceService
	authSvc  *service.AuthService
	logger   *slog.Logger
}

func NewPresenceHandler(presence *service.PresenceService, authSvc *service.AuthService, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, authSvc: authSvc, logger: logger}
}

// HandleHeartbeat marks the member as viewing the page. Clients call this
// on page load and then periodically while the page stays open.
//
// HTTP: POST /api/presence/heartbeat (auth required)
func (h *PresenceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.presence.Heartbeat(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns who is on the page right now.
//
// HTTP: GET /api/presence (auth required)
func (h *PresenceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.presence.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
