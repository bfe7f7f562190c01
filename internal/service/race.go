package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
	"github.com/sakif/runclub/internal/sheets"
)

// RaceCacheTTL is how long a fetched calendar stays fresh. The sheet
// changes a few times a season; one fetch a day is plenty.
const RaceCacheTTL = 24 * time.Hour

// raceFixedColumns is how many leading sheet columns are fixed fields
// (month, country, name, info, date, distances, type); the rest are
// runner names.
const raceFixedColumns = 7

// RaceService serves the club's race calendar from a cached copy of the
// shared spreadsheet.
type RaceService struct {
	repo    repository.RaceCacheRepository
	fetcher sheets.RowFetcher // nil when the calendar is not configured
	events  EventPublisher
	logger  *slog.Logger

	// mu keeps concurrent FetchRaces calls from refreshing twice.
	mu sync.Mutex
}

func NewRaceService(repo repository.RaceCacheRepository, fetcher sheets.RowFetcher, events EventPublisher, logger *slog.Logger) *RaceService {
	return &RaceService{
		repo:    repo,
		fetcher: fetcher,
		events:  events,
		logger:  logger,
	}
}

// FetchRaces returns the calendar. A snapshot younger than the TTL is
// returned untouched — no network at all. Past the TTL the sheet is
// re-fetched and merged; if the fetch fails but a stale snapshot exists,
// the stale copy is served rather than an error.
func (s *RaceService) FetchRaces(ctx context.Context) (*model.RaceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cached calendar: %w", err)
	}
	if snapshot != nil {
		age := time.Since(time.UnixMilli(snapshot.LastUpdated))
		if age < RaceCacheTTL {
			return snapshot, nil
		}
	}

	if s.fetcher == nil {
		if snapshot != nil {
			return snapshot, nil
		}
		return nil, apperror.Unavailable("the race calendar is not configured on this server")
	}

	rows, err := s.fetcher.FetchRows(ctx)
	if err != nil {
		if snapshot != nil {
			s.logger.Warn("sheet fetch failed, serving stale calendar",
				slog.String("error", err.Error()))
			return snapshot, nil
		}
		return nil, err
	}

	fresh := &model.RaceSnapshot{
		Races:       mergeRaces(parseRaceRows(rows), snapshot),
		LastUpdated: time.Now().UnixMilli(),
	}
	if err := s.repo.ReplaceSnapshot(ctx, fresh); err != nil {
		return nil, fmt.Errorf("storing refreshed calendar: %w", err)
	}

	s.logger.Info("race calendar refreshed", slog.Int("races", len(fresh.Races)))
	s.events.Publish(realtime.Event{Topic: TopicRaces, Type: "refreshed"})
	return fresh, nil
}

// parseRaceRows maps sheet rows onto races positionally. Rows missing a
// month or a name are formatting artifacts (spacers, half-filled lines)
// and are dropped.
func parseRaceRows(rows [][]string) []model.Race {
	cell := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	var races []model.Race
	for _, row := range rows {
		race := model.Race{
			Month:     cell(row, 0),
			Country:   cell(row, 1),
			Name:      cell(row, 2),
			Info:      cell(row, 3),
			Date:      cell(row, 4),
			Distances: cell(row, 5),
			Type:      cell(row, 6),
			Runners:   []string{},
			Comments:  []model.Comment{},
			Excited:   map[string]model.ExcitedEntry{},
		}
		if race.Month == "" || race.Name == "" {
			continue
		}
		for i := raceFixedColumns; i < len(row); i++ {
			if row[i] != "" {
				race.Runners = append(race.Runners, row[i])
			}
		}
		races = append(races, race)
	}
	return races
}

// mergeRaces carries comments and excited markers from the previous
// snapshot onto the fresh rows by positional index. Positional matching
// misattributes community state if the sheet reorders or inserts rows;
// that contract is inherited and load-bearing for existing data.
func mergeRaces(fresh []model.Race, prev *model.RaceSnapshot) []model.Race {
	if prev == nil {
		return fresh
	}
	for i := range fresh {
		if i >= len(prev.Races) {
			break
		}
		if len(prev.Races[i].Comments) > 0 {
			fresh[i].Comments = prev.Races[i].Comments
		}
		if len(prev.Races[i].Excited) > 0 {
			fresh[i].Excited = prev.Races[i].Excited
		}
	}
	return fresh
}

// ToggleExcited flips the member's excitement marker on a race. Presence
// of the key is the state: unsetting deletes it rather than storing false.
func (s *RaceService) ToggleExcited(ctx context.Context, raceIndex int, userID string) (bool, error) {
	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("reading cached calendar: %w", err)
	}
	if snapshot == nil || raceIndex < 0 || raceIndex >= len(snapshot.Races) {
		return false, apperror.NotFound("race", strconv.Itoa(raceIndex))
	}

	_, excited := snapshot.Races[raceIndex].Excited[userID]
	if err := s.repo.SetExcited(ctx, raceIndex, userID, !excited); err != nil {
		return false, err
	}

	s.events.Publish(realtime.Event{Topic: TopicRaces, Type: "excited", Payload: map[string]any{
		"raceIndex": raceIndex,
		"userId":    userID,
		"excited":   !excited,
	}})
	return !excited, nil
}

// AddComment appends a comment to a race, like photo comments.
func (s *RaceService) AddComment(ctx context.Context, raceIndex int, profile *model.UserProfile, text string) (*model.Comment, error) {
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
	if err := s.repo.AddRaceComment(ctx, raceIndex, comment); err != nil {
		return nil, err
	}

	s.events.Publish(realtime.Event{Topic: TopicRaces, Type: "commented", Payload: map[string]any{
		"raceIndex": raceIndex,
		"comment":   comment,
	}})
	return comment, nil
}
