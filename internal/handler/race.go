package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// RaceHandler serves the club's race calendar.
type RaceHandler struct {
	races   *service.RaceService
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewRaceHandler(races *service.RaceService, authSvc *service.AuthService, logger *slog.Logger) *RaceHandler {
	return &RaceHandler{races: races, authSvc: authSvc, logger: logger}
}

func raceIndex(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed("index", "race index must be a non-negative integer")
	}
	return n, nil
}

// HandleList returns the calendar, refreshing from the sheet when the
// cached copy is older than a day.
//
// HTTP: GET /api/races (public)
func (h *RaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.races.FetchRaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleToggleExcited flips the member's excitement marker on a race.
//
// HTTP: POST /api/races/{index}/excited (auth required)
// Response: {"excited":true}
func (h *RaceHandler) HandleToggleExcited(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	index, err := raceIndex(r)
	if err != nil {
		writeError(w, err)
		return
	}

	excited, err := h.races.ToggleExcited(r.Context(), index, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"excited": excited})
}

// HandleComment appends a comment to a race.
//
// HTTP: POST /api/races/{index}/comments (auth required)
// Body: {"text":"..."}
func (h *RaceHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := raceIndex(r)
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

	comment, err := h.races.AddComment(r.Context(), index, profile, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
