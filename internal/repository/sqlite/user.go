package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
	"github.com/sakif/runclub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert creates or overwrites the member's profile.
//
// The uid comes from the identity provider and is the primary key, so a
// plain INSERT ... ON CONFLICT REPLACE gives the overwrite-on-every-sign-in
// behavior the app relies on: display name, email, photo and last-login all
// track what the provider last reported.
func (db *DB) Upsert(ctx context.Context, profile *model.UserProfile) error {
	if profile.LastLogin.IsZero() {
		profile.LastLogin = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (uid, display_name, email, photo_url, last_login)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			email        = excluded.email,
			photo_url    = excluded.photo_url,
			last_login   = excluded.last_login`,
		profile.UID,
		profile.DisplayName,
		profile.Email,
		profile.PhotoURL,
		profile.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", profile.UID, err)
	}

	return nil
}

// GetByUID retrieves a profile by provider uid.
func (db *DB) GetByUID(ctx context.Context, uid string) (*model.UserProfile, error) {
	var p model.UserProfile

	err := db.conn.QueryRowContext(ctx,
		`SELECT uid, display_name, email, photo_url, last_login
		 FROM users WHERE uid = ?`,
		uid,
	).Scan(&p.UID, &p.DisplayName, &p.Email, &p.PhotoURL, &p.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", uid, err)
	}

	return &p, nil
}

// GetByEmail finds a profile by email. Used to detect the same member
// arriving through a different provider account with the same address.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	var p model.UserProfile

	err := db.conn.QueryRowContext(ctx,
		`SELECT uid, display_name, email, photo_url, last_login
		 FROM users WHERE email = ? AND email != '' LIMIT 1`,
		email,
	).Scan(&p.UID, &p.DisplayName, &p.Email, &p.PhotoURL, &p.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	return &p, nil
}
