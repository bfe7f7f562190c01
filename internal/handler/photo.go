package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/service"
)

// maxUploadBytes caps a whole upload request. Three photos at ~10 MB each
// plus form overhead.
const maxUploadBytes = 32 << 20

// PhotoHandler serves the community photo feed.
type PhotoHandler struct {
	photos  *service.PhotoService
	authSvc *service.AuthService
	logger  *slog.Logger
}

func NewPhotoHandler(photos *service.PhotoService, authSvc *service.AuthService, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{photos: photos, authSvc: authSvc, logger: logger}
}

// HandleFeed returns one page of the feed.
//
// HTTP: GET /api/photos?offset=N (public)
//
// Response: {"groups":[...],"hasMore":true}. A group is a bundle or a
// single standalone photo; offset counts groups, not photos.
func (h *PhotoHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, apperror.ValidationFailed("offset", "offset must be a non-negative integer"))
			return
		}
		offset = n
	}

	groups, hasMore, err := h.photos.Feed(r.Context(), offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":  groups,
		"hasMore": hasMore,
	})
}

// HandleUpload accepts a multipart form with a "caption" field and up to
// three files under "photos".
//
// HTTP: POST /api/photos (auth required)
func (h *PhotoHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	profile, err := callerProfile(r, h.authSvc)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid or oversized multipart form"))
		return
	}

	var files []service.UploadFile
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["photos"] {
			f, err := header.Open()
			if err != nil {
				writeError(w, apperror.ValidationFailed("photos", "unreadable file in upload"))
				return
			}
			defer f.Close()
			files = append(files, service.UploadFile{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        f,
			})
		}
	}

	photos, err := h.photos.Upload(r.Context(), profile, files, r.FormValue("caption"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, photos)
}

// HandleToggleLike flips the member's like on a photo.
//
// HTTP: POST /api/photos/{id}/like (auth required)
// Response: {"liked":true}
func (h *PhotoHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	liked, err := h.photos.ToggleLike(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// HandleComment appends a comment to a photo.
//
// HTTP: POST /api/photos/{id}/comments (auth required)
// Body: {"text":"..."}
func (h *PhotoHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
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

	comment, err := h.photos.AddComment(r.Context(), r.PathValue("id"), profile, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleDelete removes a photo — and, if it belongs to a bundle, the whole
// bundle.
//
// HTTP: DELETE /api/photos/{id} (auth required)
func (h *PhotoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if err := h.photos.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
