package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

var _ repository.FeedbackRepository = (*DB)(nil)

// AddFeedback appends one feedback submission with a generated ID.
func (db *DB) AddFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb.ID == "" {
		fb.ID = xid.New().String()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO feedback (id, type, text, page, user_id, user_name, user_email, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.Type, fb.Text, fb.Page, fb.UserID, fb.UserName, fb.UserEmail, fb.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding feedback: %w", err)
	}

	return nil
}

// ListFeedback returns every submission, newest first.
func (db *DB) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, type, text, page, user_id, user_name, user_email, timestamp
		 FROM feedback ORDER BY timestamp DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing feedback: %w", err)
	}
	defer rows.Close()

	var entries []model.Feedback
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(
			&fb.ID, &fb.Type, &fb.Text, &fb.Page, &fb.UserID,
			&fb.UserName, &fb.UserEmail, &fb.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning feedback row: %w", err)
		}
		entries = append(entries, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating feedback: %w", err)
	}

	return entries, nil
}
