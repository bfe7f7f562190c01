// Package repository declares the storage interfaces the services depend on.
//
// Services receive these interfaces, never the concrete sqlite.DB — tests
// inject in-memory mocks, and the storage backend can change without any
// service noticing. One sqlite.DB implements all of them, so method names
// carry the entity name.
package repository

import (
	"context"
	"time"

	"github.com/sakif/runclub/internal/model"
)

// UserRepository stores member profiles, keyed by the provider uid.
type UserRepository interface {
	// Upsert creates the profile on first sign-in and overwrites it on
	// every subsequent one.
	Upsert(ctx context.Context, profile *model.UserProfile) error
	GetByUID(ctx context.Context, uid string) (*model.UserProfile, error)
	// GetByEmail finds a profile by email; used to detect a member signing
	// in with the same email through a different provider account.
	GetByEmail(ctx context.Context, email string) (*model.UserProfile, error)
}

// PresenceRepository stores the "currently online" entries for the order
// board.
type PresenceRepository interface {
	CreatePresence(ctx context.Context, entry *model.PresenceEntry) error
	UpdatePresence(ctx context.Context, entry *model.PresenceEntry) error
	DeletePresence(ctx context.Context, id string) error
	ListPresence(ctx context.Context) ([]model.PresenceEntry, error)
	// DeletePresenceOlderThan removes every entry with a timestamp before
	// the cutoff and returns the removed IDs.
	DeletePresenceOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// OrderRepository stores the pub orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	DeleteAllOrders(ctx context.Context) error
}

// PhotoRepository stores feed photos, their likes, and their comments.
type PhotoRepository interface {
	CreatePhoto(ctx context.Context, photo *model.Photo) error
	GetPhotoByID(ctx context.Context, id string) (*model.Photo, error)
	ListPhotos(ctx context.Context) ([]model.Photo, error)
	ListBundle(ctx context.Context, bundleID string) ([]model.Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	// CountUploadsSince counts distinct upload actions by the user with a
	// timestamp at or after since — a bundle counts once, a standalone
	// photo counts once.
	CountUploadsSince(ctx context.Context, userID string, since time.Time) (int, error)
	// SetLike adds (liked=true) or removes (liked=false) the user's key in
	// the photo's like set.
	SetLike(ctx context.Context, photoID, userID string, liked bool) error
	AddPhotoComment(ctx context.Context, photoID string, comment *model.Comment) error
}

// StageRepository stores relay signup state. The immutable course
// definitions live in the stage service; only mutable state is stored.
type StageRepository interface {
	ListSignups(ctx context.Context, stageNumber int) ([]model.StageSignup, error)
	ListAllSignups(ctx context.Context) (map[int][]model.StageSignup, error)
	AddSignup(ctx context.Context, stageNumber int, signup *model.StageSignup) error
	GetSignup(ctx context.Context, stageNumber int, signupID string) (*model.StageSignup, error)
	DeleteSignup(ctx context.Context, stageNumber int, signupID string) error
	SetVerified(ctx context.Context, stageNumber int, signupID string) error
	// StageState returns the locked-in runner (empty when none) and the
	// payment flag for a stage.
	StageState(ctx context.Context, stageNumber int) (lockedInRunnerID string, paymentReceived bool, err error)
	SetLockedIn(ctx context.Context, stageNumber int, signupID string) error
	ClearLockedIn(ctx context.Context, stageNumber int) error
	SetPaymentReceived(ctx context.Context, stageNumber int, received bool) error
}

// TodoRepository stores the relay organising board's tasks.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *model.Todo) error
	GetTodoByID(ctx context.Context, id string) (*model.Todo, error)
	ListTodos(ctx context.Context) ([]model.Todo, error)
	SetTodoCompleted(ctx context.Context, id string, completed bool) error
	SetTodoAssignee(ctx context.Context, id, assigneeID, assigneeName string) error
	DeleteTodo(ctx context.Context, id string) error
}

// FeedbackRepository stores feedback form submissions. The app only ever
// appends and lists; there is no update or delete path.
type FeedbackRepository interface {
	AddFeedback(ctx context.Context, fb *model.Feedback) error
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
}

// AdminRepository answers admin-status lookups. Admin identities live in
// their own table keyed by uid, not in the member's profile, so no member
// can escalate themselves by editing their own record.
type AdminRepository interface {
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

// RaceCacheRepository stores the cached race-calendar snapshot.
type RaceCacheRepository interface {
	// GetSnapshot returns (nil, nil) when no snapshot has ever been stored.
	GetSnapshot(ctx context.Context) (*model.RaceSnapshot, error)
	// ReplaceSnapshot swaps the stored rows and timestamp for the merged
	// result of a fresh fetch.
	ReplaceSnapshot(ctx context.Context, snapshot *model.RaceSnapshot) error
	AddRaceComment(ctx context.Context, raceIndex int, comment *model.Comment) error
	// SetExcited adds or deletes the user's subkey under the race's
	// excited map; deletion removes the key entirely.
	SetExcited(ctx context.Context, raceIndex int, userID string, excited bool) error
}
