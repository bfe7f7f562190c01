package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

var _ repository.RaceCacheRepository = (*DB)(nil)

// GetSnapshot returns the cached calendar, or (nil, nil) when nothing has
// ever been stored.
func (db *DB) GetSnapshot(ctx context.Context) (*model.RaceSnapshot, error) {
	var lastUpdated int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT last_updated FROM race_meta WHERE id = 1`,
	).Scan(&lastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: reading race meta: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT idx, month, country, name, info, date, distances, type, runners
		 FROM races ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing races: %w", err)
	}
	defer rows.Close()

	var races []model.Race
	var indexes []int
	for rows.Next() {
		var idx int
		var r model.Race
		var runnersJSON string
		if err := rows.Scan(
			&idx, &r.Month, &r.Country, &r.Name, &r.Info, &r.Date,
			&r.Distances, &r.Type, &runnersJSON,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning race row: %w", err)
		}
		if err := json.Unmarshal([]byte(runnersJSON), &r.Runners); err != nil {
			return nil, fmt.Errorf("sqlite: decoding runners for race %d: %w", idx, err)
		}
		races = append(races, r)
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating races: %w", err)
	}

	for i := range races {
		if err := db.attachRaceState(ctx, indexes[i], &races[i]); err != nil {
			return nil, err
		}
	}

	return &model.RaceSnapshot{Races: races, LastUpdated: lastUpdated}, nil
}

func (db *DB) attachRaceState(ctx context.Context, idx int, r *model.Race) error {
	r.Comments = []model.Comment{}
	commentRows, err := db.conn.QueryContext(ctx,
		`SELECT id, text, user_id, user_name, user_photo_url, timestamp
		 FROM race_comments WHERE race_idx = ? ORDER BY id ASC`,
		idx,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading comments for race %d: %w", idx, err)
	}
	for commentRows.Next() {
		var c model.Comment
		if err := commentRows.Scan(
			&c.ID, &c.Text, &c.UserID, &c.UserName, &c.UserPhotoURL, &c.Timestamp,
		); err != nil {
			commentRows.Close()
			return fmt.Errorf("sqlite: scanning race comment row: %w", err)
		}
		r.Comments = append(r.Comments, c)
	}
	if err := commentRows.Close(); err != nil {
		return err
	}

	r.Excited = map[string]model.ExcitedEntry{}
	excitedRows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM race_excited WHERE race_idx = ?`, idx,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading excited for race %d: %w", idx, err)
	}
	for excitedRows.Next() {
		var uid string
		if err := excitedRows.Scan(&uid); err != nil {
			excitedRows.Close()
			return fmt.Errorf("sqlite: scanning excited row: %w", err)
		}
		r.Excited[uid] = model.ExcitedEntry{Value: true}
	}
	return excitedRows.Close()
}

// ReplaceSnapshot swaps the whole cached calendar for the merged result of
// a fresh fetch. Rows are addressed positionally, so the community state
// tables are rewritten from the merged races rather than patched in place.
func (db *DB) ReplaceSnapshot(ctx context.Context, snapshot *model.RaceSnapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: starting snapshot tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"races", "race_comments", "race_excited"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("sqlite: clearing %s: %w", table, err)
		}
	}

	for idx, r := range snapshot.Races {
		runners := r.Runners
		if runners == nil {
			runners = []string{}
		}
		runnersJSON, err := json.Marshal(runners)
		if err != nil {
			return fmt.Errorf("sqlite: encoding runners for race %d: %w", idx, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO races (idx, month, country, name, info, date,
				distances, type, runners)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			idx, r.Month, r.Country, r.Name, r.Info, r.Date,
			r.Distances, r.Type, string(runnersJSON),
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting race %d: %w", idx, err)
		}

		for _, c := range r.Comments {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO race_comments (id, race_idx, text, user_id,
					user_name, user_photo_url, timestamp)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				c.ID, idx, c.Text, c.UserID, c.UserName, c.UserPhotoURL, c.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting comment for race %d: %w", idx, err)
			}
		}

		for uid := range r.Excited {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO race_excited (race_idx, user_id) VALUES (?, ?)`,
				idx, uid,
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting excited for race %d: %w", idx, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO race_meta (id, last_updated) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_updated = excluded.last_updated`,
		snapshot.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating race meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snapshot: %w", err)
	}
	return nil
}

// AddRaceComment appends a comment to one cached race row.
func (db *DB) AddRaceComment(ctx context.Context, raceIndex int, comment *model.Comment) error {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM races WHERE idx = ?`, raceIndex,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking race %d: %w", raceIndex, err)
	}
	if exists == 0 {
		return apperror.NotFound("race", fmt.Sprintf("%d", raceIndex))
	}

	if comment.ID == "" {
		comment.ID = xid.New().String()
	}
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now()
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO race_comments (id, race_idx, text, user_id, user_name,
			user_photo_url, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, raceIndex, comment.Text, comment.UserID, comment.UserName,
		comment.UserPhotoURL, comment.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding comment to race %d: %w", raceIndex, err)
	}

	return nil
}

// SetExcited adds or deletes the user's key in the race's excited set.
func (db *DB) SetExcited(ctx context.Context, raceIndex int, userID string, excited bool) error {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM races WHERE idx = ?`, raceIndex,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking race %d: %w", raceIndex, err)
	}
	if exists == 0 {
		return apperror.NotFound("race", fmt.Sprintf("%d", raceIndex))
	}

	if excited {
		_, err = db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO race_excited (race_idx, user_id) VALUES (?, ?)`,
			raceIndex, userID,
		)
	} else {
		_, err = db.conn.ExecContext(ctx,
			`DELETE FROM race_excited WHERE race_idx = ? AND user_id = ?`,
			raceIndex, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: setting excited on race %d: %w", raceIndex, err)
	}

	return nil
}
