package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/realtime"
	"github.com/sakif/runclub/internal/repository"
)

// TodoService runs the relay organising board's shared task list.
type TodoService struct {
	repo   repository.TodoRepository
	admins repository.AdminRepository
	events EventPublisher
	logger *slog.Logger
}

func NewTodoService(repo repository.TodoRepository, admins repository.AdminRepository, events EventPublisher, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		admins: admins,
		events: events,
		logger: logger,
	}
}

// Add creates a task.
func (s *TodoService) Add(ctx context.Context, profile *model.UserProfile, text string) (*model.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "task text is required")
	}

	todo := &model.Todo{
		Text:          text,
		CreatedBy:     profile.UID,
		CreatedByName: profile.DisplayName,
	}
	if err := s.repo.CreateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.events.Publish(realtime.Event{Topic: TopicTodos, Type: "created", Payload: todo})
	return todo, nil
}

// List returns every task, incomplete first, newest first within each half.
func (s *TodoService) List(ctx context.Context) ([]model.Todo, error) {
	todos, err := s.repo.ListTodos(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].IsCompleted != todos[j].IsCompleted {
			return !todos[i].IsCompleted
		}
		return todos[i].Timestamp.After(todos[j].Timestamp)
	})
	return todos, nil
}

// ToggleComplete flips a task's completion. Any signed-in member may do
// this — the board is shared working state, not personal.
func (s *TodoService) ToggleComplete(ctx context.Context, id string) (bool, error) {
	todo, err := s.repo.GetTodoByID(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.repo.SetTodoCompleted(ctx, id, !todo.IsCompleted); err != nil {
		return false, err
	}

	s.events.Publish(realtime.Event{Topic: TopicTodos, Type: "completed", Payload: map[string]any{
		"id":        id,
		"completed": !todo.IsCompleted,
	}})
	return !todo.IsCompleted, nil
}

// Assign records who a task is assigned to; empty values clear it.
func (s *TodoService) Assign(ctx context.Context, id, assigneeID, assigneeName string) error {
	if err := s.repo.SetTodoAssignee(ctx, id, strings.TrimSpace(assigneeID), strings.TrimSpace(assigneeName)); err != nil {
		return err
	}

	s.events.Publish(realtime.Event{Topic: TopicTodos, Type: "assigned", Payload: map[string]any{
		"id":         id,
		"assigneeId": assigneeID,
	}})
	return nil
}

// Delete removes a task. Only its creator or an admin may do that.
func (s *TodoService) Delete(ctx context.Context, id, callerUID string) error {
	todo, err := s.repo.GetTodoByID(ctx, id)
	if err != nil {
		return err
	}
	if todo.CreatedBy != callerUID {
		isAdmin, err := s.admins.IsAdmin(ctx, callerUID)
		if err != nil {
			return fmt.Errorf("checking admin status: %w", err)
		}
		if !isAdmin {
			return apperror.Forbidden("only the creator or an admin can delete a task")
		}
	}

	if err := s.repo.DeleteTodo(ctx, id); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.String("id", id), slog.String("by", callerUID))
	s.events.Publish(realtime.Event{Topic: TopicTodos, Type: "removed", Payload: id})
	return nil
}
