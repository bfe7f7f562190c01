package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

// FeedbackService collects submissions from the site-wide feedback form.
// This is the one surface open to visitors without a session: they submit
// under the name they type into the form instead of a stored profile.
type FeedbackService struct {
	repo   repository.FeedbackRepository
	admins repository.AdminRepository
	logger *slog.Logger
}

func NewFeedbackService(repo repository.FeedbackRepository, admins repository.AdminRepository, logger *slog.Logger) *FeedbackService {
	return &FeedbackService{
		repo:   repo,
		admins: admins,
		logger: logger,
	}
}

// Submit records one feedback entry. profile is nil for signed-out
// visitors, who must give a name instead; fbType and text are always
// required, page is whatever path the form was opened on.
func (s *FeedbackService) Submit(ctx context.Context, profile *model.UserProfile, fbType, text, page, anonymousName string) (*model.Feedback, error) {
	fbType = strings.TrimSpace(fbType)
	if fbType == "" {
		return nil, apperror.ValidationFailed("type", "feedback type is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("feedback", "feedback text is required")
	}

	fb := &model.Feedback{
		Type: fbType,
		Text: text,
		Page: strings.TrimSpace(page),
	}
	if profile != nil {
		fb.UserID = profile.UID
		fb.UserName = profile.DisplayName
		fb.UserEmail = profile.Email
	} else {
		anonymousName = strings.TrimSpace(anonymousName)
		if anonymousName == "" {
			return nil, apperror.ValidationFailed("name", "please enter your name")
		}
		fb.UserID = model.AnonymousUserID
		fb.UserName = anonymousName
	}

	if err := s.repo.AddFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("storing feedback: %w", err)
	}

	s.logger.Info("feedback submitted",
		slog.String("type", fb.Type),
		slog.String("userId", fb.UserID),
	)
	return fb, nil
}

// List returns every submission, newest first. Admins only.
func (s *FeedbackService) List(ctx context.Context, callerUID string) ([]model.Feedback, error) {
	isAdmin, err := s.admins.IsAdmin(ctx, callerUID)
	if err != nil {
		return nil, fmt.Errorf("checking admin status: %w", err)
	}
	if !isAdmin {
		return nil, apperror.Forbidden("only admins can read feedback")
	}

	entries, err := s.repo.ListFeedback(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.Feedback{}
	}
	return entries, nil
}
