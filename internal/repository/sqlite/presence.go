package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

var _ repository.PresenceRepository = (*DB)(nil)

// CreatePresence inserts a new presence entry with a generated ID.
func (db *DB) CreatePresence(ctx context.Context, entry *model.PresenceEntry) error {
	entry.ID = xid.New().String()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO presence (id, name, user_id, photo_url, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Name, entry.UserID, entry.PhotoURL, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating presence entry: %w", err)
	}

	return nil
}

// UpdatePresence rewrites an existing entry in place — the heartbeat path when the
// member already has a live entry.
func (db *DB) UpdatePresence(ctx context.Context, entry *model.PresenceEntry) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE presence SET name = ?, user_id = ?, photo_url = ?, timestamp = ?
		 WHERE id = ?`,
		entry.Name, entry.UserID, entry.PhotoURL, entry.Timestamp, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating presence entry %s: %w", entry.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("presence entry", entry.ID)
	}

	return nil
}

// DeletePresence removes a presence entry. Deleting an already-removed entry is not
// an error: the TTL sweep and the disconnect hook race for the same rows by
// design, and whichever loses must not fail.
func (db *DB) DeletePresence(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM presence WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting presence entry %s: %w", id, err)
	}
	return nil
}

// ListPresence returns every presence entry, oldest first.
func (db *DB) ListPresence(ctx context.Context) ([]model.PresenceEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, user_id, photo_url, timestamp
		 FROM presence ORDER BY timestamp ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing presence: %w", err)
	}
	defer rows.Close()

	var entries []model.PresenceEntry
	for rows.Next() {
		var e model.PresenceEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.UserID, &e.PhotoURL, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scanning presence row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating presence: %w", err)
	}

	return entries, nil
}

// DeletePresenceOlderThan removes entries last refreshed before the cutoff and
// returns their IDs so the caller can broadcast the removals.
func (db *DB) DeletePresenceOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM presence WHERE timestamp < ?`, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting expired presence: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning expired presence id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM presence WHERE timestamp < ?`, cutoff,
	); err != nil {
		return nil, fmt.Errorf("sqlite: deleting expired presence: %w", err)
	}

	return ids, nil
}
