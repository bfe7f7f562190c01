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

var _ repository.StageRepository = (*DB)(nil)

const signupColumns = `id, user_id, user_name, user_photo_url, is_guest,
	guest_name, guest_email, is_verified, timestamp`

func scanSignup(row interface{ Scan(...any) error }) (*model.StageSignup, error) {
	var s model.StageSignup
	err := row.Scan(
		&s.ID, &s.UserID, &s.UserName, &s.UserPhotoURL, &s.IsGuest,
		&s.GuestName, &s.GuestEmail, &s.IsVerified, &s.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSignups returns a stage's signups in signup order.
func (db *DB) ListSignups(ctx context.Context, stageNumber int) ([]model.StageSignup, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+signupColumns+` FROM stage_signups
		 WHERE stage_number = ? ORDER BY timestamp ASC`,
		stageNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing signups for stage %d: %w", stageNumber, err)
	}
	defer rows.Close()

	var signups []model.StageSignup
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning signup row: %w", err)
		}
		signups = append(signups, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating signups: %w", err)
	}

	return signups, nil
}

// ListAllSignups returns every signup keyed by stage number. Stages with no
// signups have no key.
func (db *DB) ListAllSignups(ctx context.Context) (map[int][]model.StageSignup, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT stage_number, `+signupColumns+` FROM stage_signups
		 ORDER BY stage_number ASC, timestamp ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing all signups: %w", err)
	}
	defer rows.Close()

	signups := map[int][]model.StageSignup{}
	for rows.Next() {
		var stageNumber int
		var s model.StageSignup
		err := rows.Scan(
			&stageNumber,
			&s.ID, &s.UserID, &s.UserName, &s.UserPhotoURL, &s.IsGuest,
			&s.GuestName, &s.GuestEmail, &s.IsVerified, &s.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning signup row: %w", err)
		}
		signups[stageNumber] = append(signups[stageNumber], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating signups: %w", err)
	}

	return signups, nil
}

// AddSignup registers a runner on a stage.
func (db *DB) AddSignup(ctx context.Context, stageNumber int, signup *model.StageSignup) error {
	if signup.ID == "" {
		signup.ID = xid.New().String()
	}
	if signup.Timestamp.IsZero() {
		signup.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO stage_signups (id, stage_number, user_id, user_name,
			user_photo_url, is_guest, guest_name, guest_email, is_verified,
			timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signup.ID, stageNumber, signup.UserID, signup.UserName,
		signup.UserPhotoURL, signup.IsGuest, signup.GuestName,
		signup.GuestEmail, signup.IsVerified, signup.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding signup to stage %d: %w", stageNumber, err)
	}

	return nil
}

// GetSignup returns one signup on a stage.
func (db *DB) GetSignup(ctx context.Context, stageNumber int, signupID string) (*model.StageSignup, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+signupColumns+` FROM stage_signups
		 WHERE stage_number = ? AND id = ?`,
		stageNumber, signupID,
	)

	s, err := scanSignup(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("signup", signupID)
		}
		return nil, fmt.Errorf("sqlite: getting signup %s: %w", signupID, err)
	}

	return s, nil
}

// DeleteSignup removes a signup from a stage.
func (db *DB) DeleteSignup(ctx context.Context, stageNumber int, signupID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM stage_signups WHERE stage_number = ? AND id = ?`,
		stageNumber, signupID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting signup %s: %w", signupID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("signup", signupID)
	}

	return nil
}

// SetVerified marks a guest signup as verified.
func (db *DB) SetVerified(ctx context.Context, stageNumber int, signupID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE stage_signups SET is_verified = 1
		 WHERE stage_number = ? AND id = ?`,
		stageNumber, signupID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: verifying signup %s: %w", signupID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("signup", signupID)
	}

	return nil
}

// StageState returns the stage's locked-in runner and payment flag. A stage
// with no state row is simply unlocked and unpaid.
func (db *DB) StageState(ctx context.Context, stageNumber int) (string, bool, error) {
	var lockedIn sql.NullString
	var paymentReceived bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT locked_in_runner_id, payment_received
		 FROM stage_state WHERE stage_number = ?`,
		stageNumber,
	).Scan(&lockedIn, &paymentReceived)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite: reading state for stage %d: %w", stageNumber, err)
	}
	return lockedIn.String, paymentReceived, nil
}

// SetLockedIn records the stage's official runner.
func (db *DB) SetLockedIn(ctx context.Context, stageNumber int, signupID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO stage_state (stage_number, locked_in_runner_id)
		 VALUES (?, ?)
		 ON CONFLICT(stage_number) DO UPDATE SET locked_in_runner_id = excluded.locked_in_runner_id`,
		stageNumber, signupID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: locking in stage %d: %w", stageNumber, err)
	}
	return nil
}

// ClearLockedIn removes the stage's official runner and resets the payment
// flag, returning the stage to open signup.
func (db *DB) ClearLockedIn(ctx context.Context, stageNumber int) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE stage_state SET locked_in_runner_id = NULL, payment_received = 0
		 WHERE stage_number = ?`,
		stageNumber,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unlocking stage %d: %w", stageNumber, err)
	}
	return nil
}

// SetPaymentReceived flips the stage's payment flag.
func (db *DB) SetPaymentReceived(ctx context.Context, stageNumber int, received bool) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO stage_state (stage_number, payment_received)
		 VALUES (?, ?)
		 ON CONFLICT(stage_number) DO UPDATE SET payment_received = excluded.payment_received`,
		stageNumber, received,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting payment for stage %d: %w", stageNumber, err)
	}
	return nil
}
