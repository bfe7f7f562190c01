package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
	"github.com/sakif/runclub/internal/storage"
)

const (
	// MaxUploadsPerDay is the per-member quota of upload actions per
	// calendar day. A bundle counts once.
	MaxUploadsPerDay = 2
	// MaxFilesPerUpload is how many photos one upload action may bundle.
	MaxFilesPerUpload = 3
	// FeedPageSize is how many groups one feed page holds.
	FeedPageSize = 12
)

// UploadFile is one file of an upload action.
type UploadFile struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// likeOverlay holds in-flight like toggles. The overlay is applied to
// every read, so a member sees their tap take effect immediately; the
// entry is removed once the store write lands (or rolled back if it
// fails), after which the store is the only truth again.
type likeOverlay struct {
	mu sync.Mutex
	// photoID -> userID -> liked
	state map[string]map[string]bool
}

func newLikeOverlay() *likeOverlay {
	return &likeOverlay{state: make(map[string]map[string]bool)}
}

func (o *likeOverlay) set(photoID, userID string, liked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state[photoID] == nil {
		o.state[photoID] = make(map[string]bool)
	}
	o.state[photoID][userID] = liked
}

// restore puts back the exact pre-toggle overlay state for one key.
func (o *likeOverlay) restore(photoID, userID string, prev bool, hadPrev bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hadPrev {
		o.state[photoID][userID] = prev
		return
	}
	o.clearLocked(photoID, userID)
}

func (o *likeOverlay) clear(photoID, userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked(photoID, userID)
}

func (o *likeOverlay) clearLocked(photoID, userID string) {
	if m := o.state[photoID]; m != nil {
		delete(m, userID)
		if len(m) == 0 {
			delete(o.state, photoID)
		}
	}
}

func (o *likeOverlay) get(photoID, userID string) (liked bool, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.state[photoID]
	if !ok {
		return false, false
	}
	liked, ok = m[userID]
	return liked, ok
}

// apply merges the overlay into a photo's like set.
func (o *likeOverlay) apply(p *model.Photo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for userID, liked := range o.state[p.ID] {
		if liked {
			p.Likes[userID] = true
		} else {
			delete(p.Likes, userID)
		}
	}
}

// PhotoService runs the community photo feed.
type PhotoService struct {
	repo    repository.PhotoRepository
	store   storage.ObjectStore
	events  EventPublisher
	logger  *slog.Logger
	overlay *likeOverlay

	// uploadMu serializes the quota check against the insert it guards.
	uploadMu sync.Mutex
}

func NewPhotoService(repo repository.PhotoRepository, store storage.ObjectStore, events EventPublisher, logger *slog.Logger) *PhotoService {
	return &PhotoService{
		repo:    repo,
		store:   store,
		events:  events,
		logger:  logger,
		overlay: newLikeOverlay(),
	}
}

// Upload stores up to three files as one upload action. Multi-file uploads
// share a generated bundleId and render as one feed group.
//
// The daily quota is counted fresh from the store immediately before
// commit — never from anything cached — because the member may have
// uploaded from another device since this page loaded.
func (s *PhotoService) Upload(ctx context.Context, profile *model.UserProfile, files []UploadFile, caption string) ([]model.Photo, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return nil, apperror.ValidationFailed("caption", "a caption is required")
	}
	if len(files) == 0 {
		return nil, apperror.ValidationFailed("files", "select at least one photo")
	}
	if len(files) > MaxFilesPerUpload {
		return nil, apperror.ValidationFailed("files",
			fmt.Sprintf("at most %d photos per upload", MaxFilesPerUpload))
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	startOfDay := startOfToday(time.Now())
	count, err := s.repo.CountUploadsSince(ctx, profile.UID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("counting today's uploads: %w", err)
	}
	if count >= MaxUploadsPerDay {
		return nil, apperror.LimitExceeded(
			fmt.Sprintf("you have reached the daily limit of %d uploads", MaxUploadsPerDay))
	}

	bundleID := ""
	if len(files) > 1 {
		bundleID = xid.New().String()
	}

	var saved []model.Photo
	var savedURLs []string
	for _, file := range files {
		url, err := s.store.Save(ctx, file.Name, file.ContentType, file.Data)
		if err != nil {
			s.discardObjects(ctx, savedURLs)
			return nil, err
		}
		savedURLs = append(savedURLs, url)

		photo := model.Photo{
			ImageURL:     url,
			Caption:      caption,
			UploadedBy:   profile.DisplayName,
			UserID:       profile.UID,
			UserPhotoURL: profile.PhotoURL,
			BundleID:     bundleID,
			Likes:        map[string]bool{},
			Comments:     []model.Comment{},
		}
		if err := s.repo.CreatePhoto(ctx, &photo); err != nil {
			s.discardObjects(ctx, savedURLs)
			s.discardRecords(ctx, saved)
			return nil, fmt.Errorf("storing photo record: %w", err)
		}
		saved = append(saved, photo)
	}

	s.logger.Info("photos uploaded",
		slog.String("userID", profile.UID),
		slog.Int("count", len(saved)),
		slog.String("bundleID", bundleID),
	)
	s.events.Publish(realtime.Event{Topic: TopicPhotos, Type: "created", Payload: saved})
	return saved, nil
}

// discardObjects removes objects written before a failed upload aborted.
func (s *PhotoService) discardObjects(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.store.Delete(ctx, url); err != nil {
			s.logger.Error("cleaning up object after failed upload",
				slog.String("url", url), slog.String("error", err.Error()))
		}
	}
}

func (s *PhotoService) discardRecords(ctx context.Context, photos []model.Photo) {
	for _, p := range photos {
		if err := s.repo.DeletePhoto(ctx, p.ID); err != nil {
			s.logger.Error("cleaning up record after failed upload",
				slog.String("id", p.ID), slog.String("error", err.Error()))
		}
	}
}

// startOfToday returns local midnight for the quota's calendar-day window.
func startOfToday(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// ToggleLike flips the member's like on a photo optimistically: the
// overlay changes first and is what every read sees, then the store write
// follows. A failed write restores the exact pre-toggle state.
func (s *PhotoService) ToggleLike(ctx context.Context, photoID, userID string) (liked bool, err error) {
	photo, err := s.repo.GetPhotoByID(ctx, photoID)
	if err != nil {
		return false, err
	}

	prev, hadPrev := s.overlay.get(photoID, userID)
	current := photo.Likes[userID]
	if hadPrev {
		current = prev
	}
	desired := !current

	s.overlay.set(photoID, userID, desired)
	s.events.Publish(realtime.Event{Topic: TopicPhotos, Type: "liked", Payload: map[string]any{
		"photoId": photoID,
		"userId":  userID,
		"liked":   desired,
	}})

	if err := s.repo.SetLike(ctx, photoID, userID, desired); err != nil {
		s.overlay.restore(photoID, userID, prev, hadPrev)
		s.events.Publish(realtime.Event{Topic: TopicPhotos, Type: "liked", Payload: map[string]any{
			"photoId": photoID,
			"userId":  userID,
			"liked":   current,
		}})
		s.logger.Error("like write failed, rolled back",
			slog.String("photoID", photoID), slog.String("error", err.Error()))
		return current, fmt.Errorf("storing like: %w", err)
	}

	s.overlay.clear(photoID, userID)
	return desired, nil
}

// AddComment appends a comment to a photo.
func (s *PhotoService) AddComment(ctx context.Context, photoID string, profile *model.UserProfile, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}

	comment := &model.Comment{
		Text:         text,
		UserID:       profile.UID,
		UserName:     profile.DisplayName,
		UserPhotoURL: profile.PhotoURL,
	}
	if err := s.repo.AddPhotoComment(ctx, photoID, comment); err != nil {
		return nil, err
	}

	s.events.Publish(realtime.Event{Topic: TopicPhotos, Type: "commented", Payload: map[string]any{
		"photoId": photoID,
		"comment": comment,
	}})
	return comment, nil
}

// Delete removes a photo; only the uploader may do that. Deleting any
// photo of a bundle deletes the whole bundle — records and stored objects
// both — so a post never survives in half.
func (s *PhotoService) Delete(ctx context.Context, photoID, userID string) error {
	photo, err := s.repo.GetPhotoByID(ctx, photoID)
	if err != nil {
		return err
	}
	if photo.UserID != userID {
		return apperror.Forbidden("you can only delete your own photos")
	}

	doomed := []model.Photo{*photo}
	if photo.BundleID != "" {
		doomed, err = s.repo.ListBundle(ctx, photo.BundleID)
		if err != nil {
			return fmt.Errorf("listing bundle: %w", err)
		}
	}

	for _, p := range doomed {
		if err := s.repo.DeletePhoto(ctx, p.ID); err != nil {
			return fmt.Errorf("deleting photo record: %w", err)
		}
		if err := s.store.Delete(ctx, p.ImageURL); err != nil {
			s.logger.Error("deleting stored object",
				slog.String("url", p.ImageURL), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("photos deleted",
		slog.String("userID", userID),
		slog.Int("count", len(doomed)),
	)
	s.events.Publish(realtime.Event{Topic: TopicPhotos, Type: "removed", Payload: photo.ID})
	return nil
}

// Feed returns one page of feed groups starting at offset, newest group
// first, plus whether more groups exist past this page. "Load more" just
// asks for the next offset.
func (s *PhotoService) Feed(ctx context.Context, offset int) ([]model.PhotoGroup, bool, error) {
	photos, err := s.repo.ListPhotos(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("listing photos: %w", err)
	}
	for i := range photos {
		s.overlay.apply(&photos[i])
	}

	groups := groupPhotos(photos)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(groups) {
		return []model.PhotoGroup{}, false, nil
	}
	end := offset + FeedPageSize
	if end > len(groups) {
		end = len(groups)
	}
	return groups[offset:end], end < len(groups), nil
}

// groupPhotos collapses bundles into single groups and sorts groups newest
// first. Within a bundle, photos keep upload order.
func groupPhotos(photos []model.Photo) []model.PhotoGroup {
	byKey := map[string]*model.PhotoGroup{}
	var order []string
	for _, p := range photos {
		key := p.ID
		if p.BundleID != "" {
			key = p.BundleID
		}
		g, ok := byKey[key]
		if !ok {
			g = &model.PhotoGroup{Key: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.Photos = append(g.Photos, p)
	}

	groups := make([]model.PhotoGroup, 0, len(order))
	for _, key := range order {
		g := *byKey[key]
		// ListPhotos is newest-first; bundles read oldest-first.
		sort.Slice(g.Photos, func(i, j int) bool {
			return g.Photos[i].Timestamp.Before(g.Photos[j].Timestamp)
		})
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp().After(groups[j].Timestamp())
	})
	return groups
}
