package service

// Hand-written in-memory mocks for the repository interfaces, the object
// store, and the event publisher. Each stores data in maps and returns the
// same apperror sentinels the sqlite implementations do, so services can't
// tell the difference.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testProfile(uid, name string) *model.UserProfile {
	return &model.UserProfile{UID: uid, DisplayName: name, PhotoURL: "https://example.com/" + uid + ".jpg"}
}

// recordPublisher collects published events for assertions.
type recordPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordPublisher) Publish(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordPublisher) byTopic(topic string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// ---------------------------------------------------------------------
// users / admins
// ---------------------------------------------------------------------

type mockUserRepo struct {
	users map[string]*model.UserProfile
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.UserProfile)}
}

func (m *mockUserRepo) Upsert(_ context.Context, profile *model.UserProfile) error {
	if profile.LastLogin.IsZero() {
		profile.LastLogin = time.Now()
	}
	stored := *profile
	m.users[profile.UID] = &stored
	return nil
}

func (m *mockUserRepo) GetByUID(_ context.Context, uid string) (*model.UserProfile, error) {
	p, ok := m.users[uid]
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	result := *p
	return &result, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.UserProfile, error) {
	for _, p := range m.users {
		if p.Email != "" && p.Email == email {
			result := *p
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

type mockAdminRepo struct {
	admins map[string]bool
}

func newMockAdminRepo(uids ...string) *mockAdminRepo {
	m := &mockAdminRepo{admins: make(map[string]bool)}
	for _, uid := range uids {
		m.admins[uid] = true
	}
	return m
}

func (m *mockAdminRepo) IsAdmin(_ context.Context, uid string) (bool, error) {
	return m.admins[uid], nil
}

// ---------------------------------------------------------------------
// presence
// ---------------------------------------------------------------------

type mockPresenceRepo struct {
	entries map[string]*model.PresenceEntry
	nextID  int
}

func newMockPresenceRepo() *mockPresenceRepo {
	return &mockPresenceRepo{entries: make(map[string]*model.PresenceEntry)}
}

func (m *mockPresenceRepo) CreatePresence(_ context.Context, entry *model.PresenceEntry) error {
	m.nextID++
	entry.ID = fmt.Sprintf("presence-%d", m.nextID)
	stored := *entry
	m.entries[entry.ID] = &stored
	return nil
}

func (m *mockPresenceRepo) UpdatePresence(_ context.Context, entry *model.PresenceEntry) error {
	if _, ok := m.entries[entry.ID]; !ok {
		return apperror.NotFound("presence entry", entry.ID)
	}
	stored := *entry
	m.entries[entry.ID] = &stored
	return nil
}

func (m *mockPresenceRepo) DeletePresence(_ context.Context, id string) error {
	delete(m.entries, id)
	return nil
}

func (m *mockPresenceRepo) ListPresence(_ context.Context) ([]model.PresenceEntry, error) {
	result := make([]model.PresenceEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (m *mockPresenceRepo) DeletePresenceOlderThan(_ context.Context, cutoff time.Time) ([]string, error) {
	var removed []string
	for id, e := range m.entries {
		if e.Timestamp.Before(cutoff) {
			removed = append(removed, id)
			delete(m.entries, id)
		}
	}
	return removed, nil
}

// ---------------------------------------------------------------------
// orders
// ---------------------------------------------------------------------

type mockOrderRepo struct {
	orders map[string]*model.Order
	nextID int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, order *model.Order) error {
	m.nextID++
	order.ID = fmt.Sprintf("order-%d", m.nextID)
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now()
	}
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepo) GetOrderByID(_ context.Context, id string) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, apperror.NotFound("order", id)
	}
	result := *o
	return &result, nil
}

func (m *mockOrderRepo) ListOrders(_ context.Context) ([]model.Order, error) {
	result := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (m *mockOrderRepo) DeleteOrder(_ context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return apperror.NotFound("order", id)
	}
	delete(m.orders, id)
	return nil
}

func (m *mockOrderRepo) DeleteAllOrders(_ context.Context) error {
	m.orders = make(map[string]*model.Order)
	return nil
}

// ---------------------------------------------------------------------
// photos
// ---------------------------------------------------------------------

type mockPhotoRepo struct {
	photos map[string]*model.Photo
	nextID int
	// failSetLike makes the next SetLike calls fail, for rollback tests.
	failSetLike bool
}

func newMockPhotoRepo() *mockPhotoRepo {
	return &mockPhotoRepo{photos: make(map[string]*model.Photo)}
}

func copyPhoto(p *model.Photo) *model.Photo {
	result := *p
	result.Likes = make(map[string]bool, len(p.Likes))
	for k, v := range p.Likes {
		result.Likes[k] = v
	}
	result.Comments = append([]model.Comment{}, p.Comments...)
	return &result
}

func (m *mockPhotoRepo) CreatePhoto(_ context.Context, photo *model.Photo) error {
	m.nextID++
	photo.ID = fmt.Sprintf("photo-%d", m.nextID)
	if photo.Timestamp.IsZero() {
		photo.Timestamp = time.Now()
	}
	if photo.Likes == nil {
		photo.Likes = map[string]bool{}
	}
	m.photos[photo.ID] = copyPhoto(photo)
	return nil
}

func (m *mockPhotoRepo) GetPhotoByID(_ context.Context, id string) (*model.Photo, error) {
	p, ok := m.photos[id]
	if !ok {
		return nil, apperror.NotFound("photo", id)
	}
	return copyPhoto(p), nil
}

func (m *mockPhotoRepo) ListPhotos(_ context.Context) ([]model.Photo, error) {
	result := make([]model.Photo, 0, len(m.photos))
	for _, p := range m.photos {
		result = append(result, *copyPhoto(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return result, nil
}

func (m *mockPhotoRepo) ListBundle(_ context.Context, bundleID string) ([]model.Photo, error) {
	var result []model.Photo
	for _, p := range m.photos {
		if p.BundleID == bundleID {
			result = append(result, *copyPhoto(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (m *mockPhotoRepo) DeletePhoto(_ context.Context, id string) error {
	if _, ok := m.photos[id]; !ok {
		return apperror.NotFound("photo", id)
	}
	delete(m.photos, id)
	return nil
}

func (m *mockPhotoRepo) CountUploadsSince(_ context.Context, userID string, since time.Time) (int, error) {
	seen := map[string]bool{}
	for _, p := range m.photos {
		if p.UserID != userID || p.Timestamp.Before(since) {
			continue
		}
		key := p.ID
		if p.BundleID != "" {
			key = p.BundleID
		}
		seen[key] = true
	}
	return len(seen), nil
}

func (m *mockPhotoRepo) SetLike(_ context.Context, photoID, userID string, liked bool) error {
	if m.failSetLike {
		return errors.New("simulated store failure")
	}
	p, ok := m.photos[photoID]
	if !ok {
		return apperror.NotFound("photo", photoID)
	}
	if liked {
		p.Likes[userID] = true
	} else {
		delete(p.Likes, userID)
	}
	return nil
}

func (m *mockPhotoRepo) AddPhotoComment(_ context.Context, photoID string, comment *model.Comment) error {
	p, ok := m.photos[photoID]
	if !ok {
		return apperror.NotFound("photo", photoID)
	}
	m.nextID++
	comment.ID = fmt.Sprintf("comment-%d", m.nextID)
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now()
	}
	p.Comments = append(p.Comments, *comment)
	return nil
}

// mockObjectStore records saved objects in memory.
type mockObjectStore struct {
	objects map[string][]byte
	nextID  int
	// failAfter makes Save fail once this many objects exist.
	failAfter int
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string][]byte), failAfter: -1}
}

func (m *mockObjectStore) Save(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if m.failAfter >= 0 && len(m.objects) >= m.failAfter {
		return "", errors.New("simulated storage failure")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.nextID++
	url := fmt.Sprintf("/media/mock-%d.jpg", m.nextID)
	m.objects[url] = data
	return url, nil
}

func (m *mockObjectStore) Delete(_ context.Context, publicURL string) error {
	delete(m.objects, publicURL)
	return nil
}

// ---------------------------------------------------------------------
// stages
// ---------------------------------------------------------------------

type mockStageState struct {
	lockedIn string
	paid     bool
}

type mockStageRepo struct {
	signups map[int][]*model.StageSignup
	state   map[int]*mockStageState
	nextID  int
}

func newMockStageRepo() *mockStageRepo {
	return &mockStageRepo{
		signups: make(map[int][]*model.StageSignup),
		state:   make(map[int]*mockStageState),
	}
}

func (m *mockStageRepo) ListSignups(_ context.Context, stageNumber int) ([]model.StageSignup, error) {
	result := make([]model.StageSignup, 0, len(m.signups[stageNumber]))
	for _, s := range m.signups[stageNumber] {
		result = append(result, *s)
	}
	return result, nil
}

func (m *mockStageRepo) ListAllSignups(_ context.Context) (map[int][]model.StageSignup, error) {
	result := make(map[int][]model.StageSignup)
	for stage, signups := range m.signups {
		for _, s := range signups {
			result[stage] = append(result[stage], *s)
		}
	}
	return result, nil
}

func (m *mockStageRepo) AddSignup(_ context.Context, stageNumber int, signup *model.StageSignup) error {
	m.nextID++
	signup.ID = fmt.Sprintf("signup-%d", m.nextID)
	if signup.Timestamp.IsZero() {
		signup.Timestamp = time.Now()
	}
	stored := *signup
	m.signups[stageNumber] = append(m.signups[stageNumber], &stored)
	return nil
}

func (m *mockStageRepo) GetSignup(_ context.Context, stageNumber int, signupID string) (*model.StageSignup, error) {
	for _, s := range m.signups[stageNumber] {
		if s.ID == signupID {
			result := *s
			return &result, nil
		}
	}
	return nil, apperror.NotFound("signup", signupID)
}

func (m *mockStageRepo) DeleteSignup(_ context.Context, stageNumber int, signupID string) error {
	signups := m.signups[stageNumber]
	for i, s := range signups {
		if s.ID == signupID {
			m.signups[stageNumber] = append(signups[:i], signups[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("signup", signupID)
}

func (m *mockStageRepo) SetVerified(_ context.Context, stageNumber int, signupID string) error {
	for _, s := range m.signups[stageNumber] {
		if s.ID == signupID {
			s.IsVerified = true
			return nil
		}
	}
	return apperror.NotFound("signup", signupID)
}

func (m *mockStageRepo) StageState(_ context.Context, stageNumber int) (string, bool, error) {
	st, ok := m.state[stageNumber]
	if !ok {
		return "", false, nil
	}
	return st.lockedIn, st.paid, nil
}

func (m *mockStageRepo) SetLockedIn(_ context.Context, stageNumber int, signupID string) error {
	st, ok := m.state[stageNumber]
	if !ok {
		st = &mockStageState{}
		m.state[stageNumber] = st
	}
	st.lockedIn = signupID
	return nil
}

func (m *mockStageRepo) ClearLockedIn(_ context.Context, stageNumber int) error {
	if st, ok := m.state[stageNumber]; ok {
		st.lockedIn = ""
		st.paid = false
	}
	return nil
}

func (m *mockStageRepo) SetPaymentReceived(_ context.Context, stageNumber int, received bool) error {
	st, ok := m.state[stageNumber]
	if !ok {
		st = &mockStageState{}
		m.state[stageNumber] = st
	}
	st.paid = received
	return nil
}

// ---------------------------------------------------------------------
// todos
// ---------------------------------------------------------------------

type mockTodoRepo struct {
	todos  map[string]*model.Todo
	nextID int
}

func newMockTodoRepo() *mockTodoRepo {
	return &mockTodoRepo{todos: make(map[string]*model.Todo)}
}

func (m *mockTodoRepo) CreateTodo(_ context.Context, todo *model.Todo) error {
	m.nextID++
	todo.ID = fmt.Sprintf("todo-%d", m.nextID)
	if todo.Timestamp.IsZero() {
		todo.Timestamp = time.Now()
	}
	stored := *todo
	m.todos[todo.ID] = &stored
	return nil
}

func (m *mockTodoRepo) GetTodoByID(_ context.Context, id string) (*model.Todo, error) {
	t, ok := m.todos[id]
	if !ok {
		return nil, apperror.NotFound("todo", id)
	}
	result := *t
	return &result, nil
}

func (m *mockTodoRepo) ListTodos(_ context.Context) ([]model.Todo, error) {
	result := make([]model.Todo, 0, len(m.todos))
	for _, t := range m.todos {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

func (m *mockTodoRepo) SetTodoCompleted(_ context.Context, id string, completed bool) error {
	t, ok := m.todos[id]
	if !ok {
		return apperror.NotFound("todo", id)
	}
	t.IsCompleted = completed
	return nil
}

func (m *mockTodoRepo) SetTodoAssignee(_ context.Context, id, assigneeID, assigneeName string) error {
	t, ok := m.todos[id]
	if !ok {
		return apperror.NotFound("todo", id)
	}
	t.AssignedTo = assigneeID
	t.AssignedToName = assigneeName
	return nil
}

func (m *mockTodoRepo) DeleteTodo(_ context.Context, id string) error {
	if _, ok := m.todos[id]; !ok {
		return apperror.NotFound("todo", id)
	}
	delete(m.todos, id)
	return nil
}

// ---------------------------------------------------------------------
// race cache
// ---------------------------------------------------------------------

type mockRaceRepo struct {
	snapshot *model.RaceSnapshot
	nextID   int
}

func newMockRaceRepo() *mockRaceRepo { return &mockRaceRepo{} }

func (m *mockRaceRepo) GetSnapshot(_ context.Context) (*model.RaceSnapshot, error) {
	if m.snapshot == nil {
		return nil, nil
	}
	copied := *m.snapshot
	copied.Races = append([]model.Race{}, m.snapshot.Races...)
	return &copied, nil
}

func (m *mockRaceRepo) ReplaceSnapshot(_ context.Context, snapshot *model.RaceSnapshot) error {
	copied := *snapshot
	copied.Races = append([]model.Race{}, snapshot.Races...)
	m.snapshot = &copied
	return nil
}

func (m *mockRaceRepo) AddRaceComment(_ context.Context, raceIndex int, comment *model.Comment) error {
	if m.snapshot == nil || raceIndex < 0 || raceIndex >= len(m.snapshot.Races) {
		return apperror.NotFound("race", fmt.Sprint(raceIndex))
	}
	m.nextID++
	comment.ID = fmt.Sprintf("comment-%d", m.nextID)
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now()
	}
	race := &m.snapshot.Races[raceIndex]
	race.Comments = append(race.Comments, *comment)
	return nil
}

func (m *mockRaceRepo) SetExcited(_ context.Context, raceIndex int, userID string, excited bool) error {
	if m.snapshot == nil || raceIndex < 0 || raceIndex >= len(m.snapshot.Races) {
		return apperror.NotFound("race", fmt.Sprint(raceIndex))
	}
	race := &m.snapshot.Races[raceIndex]
	if race.Excited == nil {
		race.Excited = map[string]model.ExcitedEntry{}
	}
	if excited {
		race.Excited[userID] = model.ExcitedEntry{Value: true}
	} else {
		delete(race.Excited, userID)
	}
	return nil
}

// ---------------------------------------------------------------------
// feedback
// ---------------------------------------------------------------------

type mockFeedbackRepo struct {
	entries []model.Feedback
	nextID  int
}

func (m *mockFeedbackRepo) AddFeedback(_ context.Context, fb *model.Feedback) error {
	m.nextID++
	fb.ID = fmt.Sprintf("fb-entry-%d", m.nextID)
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}
	m.entries = append(m.entries, *fb)
	return nil
}

func (m *mockFeedbackRepo) ListFeedback(_ context.Context) ([]model.Feedback, error) {
	out := make([]model.Feedback, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// fakeRowFetcher returns canned sheet rows, or an error.
type fakeRowFetcher struct {
	rows    [][]string
	err     error
	fetches int
}

func (f *fakeRowFetcher) FetchRows(_ context.Context) ([][]string, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}
