package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

var _ repository.TodoRepository = (*DB)(nil)

// CreateTodo inserts a new task with a generated ID.
func (db *DB) CreateTodo(ctx context.Context, todo *model.Todo) error {
	if todo.ID == "" {
		todo.ID = xid.New().String()
	}
	if todo.Timestamp.IsZero() {
		todo.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO todos (id, text, created_by, created_by_name,
			assigned_to, assigned_to_name, is_completed, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.Text, todo.CreatedBy, todo.CreatedByName,
		todo.AssignedTo, todo.AssignedToName, todo.IsCompleted, todo.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	return nil
}

// GetTodoByID returns a single task.
func (db *DB) GetTodoByID(ctx context.Context, id string) (*model.Todo, error) {
	var t model.Todo
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, text, created_by, created_by_name, assigned_to,
			assigned_to_name, is_completed, timestamp
		 FROM todos WHERE id = ?`,
		id,
	).Scan(
		&t.ID, &t.Text, &t.CreatedBy, &t.CreatedByName, &t.AssignedTo,
		&t.AssignedToName, &t.IsCompleted, &t.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %s: %w", id, err)
	}

	return &t, nil
}

// ListTodos returns every task, oldest first.
func (db *DB) ListTodos(ctx context.Context) ([]model.Todo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, text, created_by, created_by_name, assigned_to,
			assigned_to_name, is_completed, timestamp
		 FROM todos ORDER BY timestamp ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos: %w", err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(
			&t.ID, &t.Text, &t.CreatedBy, &t.CreatedByName, &t.AssignedTo,
			&t.AssignedToName, &t.IsCompleted, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}

	return todos, nil
}

// SetTodoCompleted flips the completion flag.
func (db *DB) SetTodoCompleted(ctx context.Context, id string, completed bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE todos SET is_completed = ? WHERE id = ?`,
		completed, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: completing todo %s: %w", id, err)
	}
	return requireRow(result, "todo", id)
}

// SetTodoAssignee records who a task is assigned to. Empty IDs clear the
// assignment.
func (db *DB) SetTodoAssignee(ctx context.Context, id, assigneeID, assigneeName string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE todos SET assigned_to = ?, assigned_to_name = ? WHERE id = ?`,
		assigneeID, assigneeName, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: assigning todo %s: %w", id, err)
	}
	return requireRow(result, "todo", id)
}

// DeleteTodo removes a task.
func (db *DB) DeleteTodo(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: %w", id, err)
	}
	return requireRow(result, "todo", id)
}

// requireRow converts a zero-rows-affected result into NotFound.
func requireRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
