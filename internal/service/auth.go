package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

// AuthService turns a completed OAuth exchange into a stored member.
type AuthService struct {
	users  repository.UserRepository
	admins repository.AdminRepository
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, admins repository.AdminRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		admins: admins,
		logger: logger,
	}
}

// SignIn upserts the member's profile from what the provider reported and
// returns it. Callers must not issue a session cookie until this returns,
// so no client ever observes a signed-in session without a stored profile.
//
// If another account already owns the same email address, sign-in is
// blocked with a conflict: two provider accounts sharing an address are
// almost always the same person, and silently creating a second profile
// would split their orders, photos, and signups across two identities.
func (s *AuthService) SignIn(ctx context.Context, fbUser *auth.FacebookUser) (*model.UserProfile, error) {
	if fbUser.ID == "" {
		return nil, apperror.ValidationFailed("uid", "provider returned no user id")
	}

	if fbUser.Email != "" {
		existing, err := s.users.GetByEmail(ctx, fbUser.Email)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("checking email ownership: %w", err)
		}
		if existing != nil && existing.UID != fbUser.ID {
			s.logger.Warn("sign-in blocked: email belongs to another account",
				slog.String("uid", fbUser.ID),
			)
			return nil, apperror.Conflict("account",
				"an account with this email address already exists; sign in with the provider you used originally")
		}
	}

	profile := &model.UserProfile{
		UID:         fbUser.ID,
		DisplayName: fbUser.Name,
		Email:       fbUser.Email,
		PhotoURL:    fbUser.PhotoURL(),
	}
	if err := s.users.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("storing profile: %w", err)
	}

	s.logger.Info("member signed in", slog.String("uid", profile.UID))
	return profile, nil
}

// Profile returns the stored profile for a session's uid.
func (s *AuthService) Profile(ctx context.Context, uid string) (*model.UserProfile, error) {
	return s.users.GetByUID(ctx, uid)
}

// IsAdmin reports whether the uid is a club admin.
func (s *AuthService) IsAdmin(ctx context.Context, uid string) (bool, error) {
	return s.admins.IsAdmin(ctx, uid)
}
