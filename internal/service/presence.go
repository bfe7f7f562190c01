package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
)

// PresenceTTL is how long an entry lives without a heartbeat. The sweeper
// runs every TTL/2, so a closed laptop disappears from "currently viewing"
// within 45 minutes at worst.
const PresenceTTL = 30 * time.Minute

// PresenceService tracks who has the ordering page open right now.
type PresenceService struct {
	repo   repository.PresenceRepository
	events EventPublisher
	logger *slog.Logger

	// mu serializes heartbeats so two tabs of the same member can't both
	// pass the find-existing check and create duplicate entries.
	mu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func NewPresenceService(repo repository.PresenceRepository, events EventPublisher, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// Heartbeat records that the member is (still) on the page.
//
// An earlier tab's disconnect may already have removed the entry this
// session created, so the heartbeat never trusts a remembered entry ID:
// it sweeps, scans all live entries for the member by userId or name, and
// either refreshes the match in place or creates a fresh entry. The name
// fallback covers entries written before userId was recorded.
func (s *PresenceService) Heartbeat(ctx context.Context, profile *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sweepLocked(ctx); err != nil {
		return err
	}

	entries, err := s.repo.ListPresence(ctx)
	if err != nil {
		return fmt.Errorf("listing presence: %w", err)
	}

	for _, entry := range entries {
		if entry.UserID == profile.UID || entry.Name == profile.DisplayName {
			entry.Name = profile.DisplayName
			entry.UserID = profile.UID
			entry.PhotoURL = profile.PhotoURL
			entry.Timestamp = time.Now()
			if err := s.repo.UpdatePresence(ctx, &entry); err != nil {
				return fmt.Errorf("refreshing presence entry: %w", err)
			}
			s.events.Publish(realtime.Event{Topic: TopicPresence, Type: "updated", Payload: entry})
			return nil
		}
	}

	entry := &model.PresenceEntry{
		Name:      profile.DisplayName,
		UserID:    profile.UID,
		PhotoURL:  profile.PhotoURL,
		Timestamp: time.Now(),
	}
	if err := s.repo.CreatePresence(ctx, entry); err != nil {
		return fmt.Errorf("creating presence entry: %w", err)
	}
	s.events.Publish(realtime.Event{Topic: TopicPresence, Type: "created", Payload: entry})
	return nil
}

// Disconnect removes the member's entries. Wired into the realtime hub's
// on-disconnect hooks, so closing the tab clears the entry immediately
// instead of waiting for the TTL.
func (s *PresenceService) Disconnect(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.repo.ListPresence(ctx)
	if err != nil {
		s.logger.Error("listing presence on disconnect", slog.String("error", err.Error()))
		return
	}
	for _, entry := range entries {
		if entry.UserID != userID {
			continue
		}
		if err := s.repo.DeletePresence(ctx, entry.ID); err != nil {
			s.logger.Error("removing presence entry on disconnect",
				slog.String("id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.events.Publish(realtime.Event{Topic: TopicPresence, Type: "removed", Payload: entry.ID})
	}
}

// List returns the live entries after sweeping out expired ones.
func (s *PresenceService) List(ctx context.Context) ([]model.PresenceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sweepLocked(ctx); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListPresence(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing presence: %w", err)
	}
	if entries == nil {
		entries = []model.PresenceEntry{}
	}
	return entries, nil
}

// Sweep removes entries older than the TTL.
func (s *PresenceService) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(ctx)
}

func (s *PresenceService) sweepLocked(ctx context.Context) error {
	removed, err := s.repo.DeletePresenceOlderThan(ctx, time.Now().Add(-PresenceTTL))
	if err != nil {
		return fmt.Errorf("sweeping presence: %w", err)
	}
	for _, id := range removed {
		s.events.Publish(realtime.Event{Topic: TopicPresence, Type: "removed", Payload: id})
	}
	if len(removed) > 0 {
		s.logger.Info("swept expired presence entries", slog.Int("count", len(removed)))
	}
	return nil
}

// Start launches the background sweeper. Call Stop on shutdown.
func (s *PresenceService) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(PresenceTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := s.Sweep(ctx); err != nil {
					s.logger.Error("presence sweep failed", slog.String("error", err.Error()))
				}
				cancel()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweeper and waits for it to exit.
func (s *PresenceService) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}
