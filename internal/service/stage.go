package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
)

// stageDetails are the 15 legs of the Holmenkollstafetten. The course is
// fixed when the race is announced, so they live here rather than in the
// store.
var stageDetails = []model.StageDetail{
	{Number: 1, Distance: "1100 m", Description: "Knud Knudsens plass - Louises gate", Profile: "Kupert"},
	{Number: 2, Distance: "1070 m", Description: "Louises gate - Wolffs gate", Profile: "Lett stigning"},
	{Number: 3, Distance: "600 m", Description: "Wolffs gate - Wilhelm Færdens vei", Profile: "Flat"},
	{Number: 4, Distance: "1910 m", Description: "Wilhelm Færdens vei - Forskningsveien", Profile: "Kupert"},
	{Number: 5, Distance: "1260 m", Description: "Forskningsveien - Holmenveien", Profile: "Flat"},
	{Number: 6, Distance: "1240 m", Description: "Holmenveien - Slemdal skole", Profile: "Bratt stigning"},
	{Number: 7, Distance: "1790 m", Description: "Slemdal skole - Besserud", Profile: "Bratt stigning"},
	{Number: 8, Distance: "1810 m", Description: "Besserud - Gressbanen", Profile: "Nedover"},
	{Number: 9, Distance: "630 m", Description: "Gressbanen - Holmendammen", Profile: "Nedover"},
	{Number: 10, Distance: "2840 m", Description: "Holmendammen - Frognerparken", Profile: "Kupert"},
	{Number: 11, Distance: "1530 m", Description: "Frognerparken - Nordraaks gate", Profile: "Kupert"},
	{Number: 12, Distance: "370 m", Description: "Nordraaks gate - Arno Bergs plass", Profile: "Flat"},
	{Number: 13, Distance: "1080 m", Description: "Arno Bergs plass - Camilla Collets vei", Profile: "Lett stigning"},
	{Number: 14, Distance: "720 m", Description: "Camilla Collets vei - Bislettgata", Profile: "Flat"},
	{Number: 15, Distance: "500 m", Description: "Bislettgata - Mål (Bislett Stadion)", Profile: "Flat"},
}

// StageService runs the relay signup board.
//
// Admin-gated operations take the caller's uid and check the admins table
// themselves — handlers never decide who is an admin.
type StageService struct {
	repo   repository.StageRepository
	admins repository.AdminRepository
	events EventPublisher
	logger *slog.Logger

	// mu serializes signup checks against their inserts.
	mu sync.Mutex
}

func NewStageService(repo repository.StageRepository, admins repository.AdminRepository, events EventPublisher, logger *slog.Logger) *StageService {
	return &StageService{
		repo:   repo,
		admins: admins,
		events: events,
		logger: logger,
	}
}

func validStage(number int) bool {
	return number >= 1 && number <= len(stageDetails)
}

// Stages returns all 15 legs with their current signup state merged in.
func (s *StageService) Stages(ctx context.Context) ([]model.Stage, error) {
	allSignups, err := s.repo.ListAllSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing signups: %w", err)
	}

	stages := make([]model.Stage, 0, len(stageDetails))
	for _, detail := range stageDetails {
		lockedIn, paid, err := s.repo.StageState(ctx, detail.Number)
		if err != nil {
			return nil, fmt.Errorf("reading stage %d state: %w", detail.Number, err)
		}
		signups := allSignups[detail.Number]
		if signups == nil {
			signups = []model.StageSignup{}
		}
		stages = append(stages, model.Stage{
			StageDetail:      detail,
			Signups:          signups,
			LockedInRunnerID: lockedIn,
			PaymentReceived:  paid,
		})
	}
	return stages, nil
}

// SignUp registers the signed-in member on a stage. Signing up twice for
// the same stage is rejected; member signups are verified immediately.
func (s *StageService) SignUp(ctx context.Context, stageNumber int, profile *model.UserProfile) (*model.StageSignup, error) {
	if !validStage(stageNumber) {
		return nil, apperror.ValidationFailed("stage", "no such stage")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.ListSignups(ctx, stageNumber)
	if err != nil {
		return nil, fmt.Errorf("listing signups: %w", err)
	}
	for _, signup := range existing {
		if signup.UserID == profile.UID {
			return nil, apperror.Conflict("signup", "you are already signed up for this stage")
		}
	}

	signup := &model.StageSignup{
		UserID:       profile.UID,
		UserName:     profile.DisplayName,
		UserPhotoURL: profile.PhotoURL,
		IsVerified:   true,
	}
	if err := s.repo.AddSignup(ctx, stageNumber, signup); err != nil {
		return nil, fmt.Errorf("adding signup: %w", err)
	}

	s.logger.Info("stage signup",
		slog.Int("stage", stageNumber), slog.String("userID", profile.UID))
	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "signup", Payload: signup})
	return signup, nil
}

// SignUpGuest registers an unauthenticated runner. Guests carry a
// synthetic userId and stay unverified until an admin approves them, so an
// arbitrary name typed into a public form can't become an official runner
// on its own.
func (s *StageService) SignUpGuest(ctx context.Context, stageNumber int, name, email string) (*model.StageSignup, error) {
	if !validStage(stageNumber) {
		return nil, apperror.ValidationFailed("stage", "no such stage")
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "guest name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "guest email is required")
	}

	signup := &model.StageSignup{
		UserID:     "guest-" + xid.New().String(),
		UserName:   name,
		IsGuest:    true,
		GuestName:  name,
		GuestEmail: email,
		IsVerified: false,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.AddSignup(ctx, stageNumber, signup); err != nil {
		return nil, fmt.Errorf("adding guest signup: %w", err)
	}

	s.logger.Info("guest stage signup", slog.Int("stage", stageNumber))
	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "signup", Payload: signup})
	return signup, nil
}

// RemoveSignup deletes a signup. Allowed for the signup's owner and for
// admins (who clean up guest entries).
func (s *StageService) RemoveSignup(ctx context.Context, stageNumber int, signupID, callerUID string) error {
	if !validStage(stageNumber) {
		return apperror.ValidationFailed("stage", "no such stage")
	}

	signup, err := s.repo.GetSignup(ctx, stageNumber, signupID)
	if err != nil {
		return err
	}
	if signup.UserID != callerUID {
		if err := s.requireAdmin(ctx, callerUID); err != nil {
			return err
		}
	}

	// A locked-in runner must be unlocked before their signup can go.
	lockedIn, _, err := s.repo.StageState(ctx, stageNumber)
	if err != nil {
		return fmt.Errorf("reading stage state: %w", err)
	}
	if lockedIn == signupID {
		return apperror.Conflict("signup", "this runner is locked in; unlock the stage first")
	}

	if err := s.repo.DeleteSignup(ctx, stageNumber, signupID); err != nil {
		return err
	}

	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "signup-removed", Payload: map[string]any{
		"stage":    stageNumber,
		"signupId": signupID,
	}})
	return nil
}

// VerifyGuest marks a guest signup as verified. Admin only.
func (s *StageService) VerifyGuest(ctx context.Context, stageNumber int, signupID, callerUID string) error {
	if !validStage(stageNumber) {
		return apperror.ValidationFailed("stage", "no such stage")
	}
	if err := s.requireAdmin(ctx, callerUID); err != nil {
		return err
	}

	if err := s.repo.SetVerified(ctx, stageNumber, signupID); err != nil {
		return err
	}

	s.logger.Info("guest verified",
		slog.Int("stage", stageNumber), slog.String("signupID", signupID))
	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "verified", Payload: map[string]any{
		"stage":    stageNumber,
		"signupId": signupID,
	}})
	return nil
}

// LockIn confirms a stage's official runner. Admin only, and never for an
// unverified signup — verification is the whole point of the guest flow.
func (s *StageService) LockIn(ctx context.Context, stageNumber int, signupID, callerUID string) error {
	if !validStage(stageNumber) {
		return apperror.ValidationFailed("stage", "no such stage")
	}
	if err := s.requireAdmin(ctx, callerUID); err != nil {
		return err
	}

	signup, err := s.repo.GetSignup(ctx, stageNumber, signupID)
	if err != nil {
		return err
	}
	if !signup.IsVerified {
		return apperror.Conflict("signup", "only verified runners can be locked in")
	}

	if err := s.repo.SetLockedIn(ctx, stageNumber, signupID); err != nil {
		return fmt.Errorf("locking in runner: %w", err)
	}

	s.logger.Info("stage locked in",
		slog.Int("stage", stageNumber), slog.String("signupID", signupID))
	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "locked", Payload: map[string]any{
		"stage":    stageNumber,
		"signupId": signupID,
	}})
	return nil
}

// Unlock reopens a stage, clearing the locked-in runner and the payment
// flag. Admin only.
func (s *StageService) Unlock(ctx context.Context, stageNumber int, callerUID string) error {
	if !validStage(stageNumber) {
		return apperror.ValidationFailed("stage", "no such stage")
	}
	if err := s.requireAdmin(ctx, callerUID); err != nil {
		return err
	}

	if err := s.repo.ClearLockedIn(ctx, stageNumber); err != nil {
		return fmt.Errorf("unlocking stage: %w", err)
	}

	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "unlocked", Payload: map[string]any{
		"stage": stageNumber,
	}})
	return nil
}

// TogglePayment flips the stage's payment flag. Admin only, and only once
// a runner is locked in — there is nobody to have paid before that.
func (s *StageService) TogglePayment(ctx context.Context, stageNumber int, callerUID string) (bool, error) {
	if !validStage(stageNumber) {
		return false, apperror.ValidationFailed("stage", "no such stage")
	}
	if err := s.requireAdmin(ctx, callerUID); err != nil {
		return false, err
	}

	lockedIn, paid, err := s.repo.StageState(ctx, stageNumber)
	if err != nil {
		return false, fmt.Errorf("reading stage state: %w", err)
	}
	if lockedIn == "" {
		return false, apperror.Conflict("stage", "lock in a runner before recording payment")
	}

	if err := s.repo.SetPaymentReceived(ctx, stageNumber, !paid); err != nil {
		return false, fmt.Errorf("setting payment flag: %w", err)
	}

	s.events.Publish(realtime.Event{Topic: TopicStages, Type: "payment", Payload: map[string]any{
		"stage": stageNumber,
		"paid":  !paid,
	}})
	return !paid, nil
}

// Assignees returns the identities a todo can be assigned to: everyone
// with a verified signup plus the caller, deduplicated by userId.
func (s *StageService) Assignees(ctx context.Context, caller *model.UserProfile) ([]model.Assignee, error) {
	allSignups, err := s.repo.ListAllSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing signups: %w", err)
	}

	seen := map[string]bool{}
	assignees := []model.Assignee{}

	add := func(id, name, photoURL string) {
		if seen[id] {
			return
		}
		seen[id] = true
		assignees = append(assignees, model.Assignee{ID: id, Name: name, PhotoURL: photoURL})
	}

	add(caller.UID, caller.DisplayName, caller.PhotoURL)
	for _, detail := range stageDetails {
		for _, signup := range allSignups[detail.Number] {
			if signup.IsVerified {
				add(signup.UserID, signup.UserName, signup.UserPhotoURL)
			}
		}
	}
	return assignees, nil
}

// IsAdmin reports whether the uid may use the admin controls.
func (s *StageService) IsAdmin(ctx context.Context, uid string) (bool, error) {
	return s.admins.IsAdmin(ctx, uid)
}

func (s *StageService) requireAdmin(ctx context.Context, uid string) error {
	isAdmin, err := s.admins.IsAdmin(ctx, uid)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !isAdmin {
		return apperror.Forbidden("admin access required")
	}
	return nil
}
