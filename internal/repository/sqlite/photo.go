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

var _ repository.PhotoRepository = (*DB)(nil)

// CreatePhoto inserts a photo record. Likes start empty; comments are added
// separately.
func (db *DB) CreatePhoto(ctx context.Context, photo *model.Photo) error {
	if photo.ID == "" {
		photo.ID = xid.New().String()
	}
	if photo.Timestamp.IsZero() {
		photo.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO photos (id, image_url, caption, uploaded_by, user_id,
			user_photo_url, timestamp, bundle_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		photo.ID,
		photo.ImageURL,
		photo.Caption,
		photo.UploadedBy,
		photo.UserID,
		photo.UserPhotoURL,
		photo.Timestamp,
		nullable(photo.BundleID),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating photo: %w", err)
	}

	return nil
}

// GetPhotoByID returns a photo with its likes and comments populated.
func (db *DB) GetPhotoByID(ctx context.Context, id string) (*model.Photo, error) {
	var p model.Photo
	var bundleID sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, image_url, caption, uploaded_by, user_id, user_photo_url,
			timestamp, bundle_id
		 FROM photos WHERE id = ?`,
		id,
	).Scan(
		&p.ID, &p.ImageURL, &p.Caption, &p.UploadedBy, &p.UserID,
		&p.UserPhotoURL, &p.Timestamp, &bundleID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("photo", id)
		}
		return nil, fmt.Errorf("sqlite: getting photo %s: %w", id, err)
	}
	p.BundleID = bundleID.String

	if err := db.attachPhotoState(ctx, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// ListPhotos returns every photo, newest first, with likes and comments
// populated. The feed keeps the whole (small) collection in memory and
// paginates there, mirroring how the store delivers everything under one
// path to its subscribers.
func (db *DB) ListPhotos(ctx context.Context) ([]model.Photo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, image_url, caption, uploaded_by, user_id, user_photo_url,
			timestamp, bundle_id
		 FROM photos ORDER BY timestamp DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing photos: %w", err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		var bundleID sql.NullString
		if err := rows.Scan(
			&p.ID, &p.ImageURL, &p.Caption, &p.UploadedBy, &p.UserID,
			&p.UserPhotoURL, &p.Timestamp, &bundleID,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning photo row: %w", err)
		}
		p.BundleID = bundleID.String
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating photos: %w", err)
	}

	for i := range photos {
		if err := db.attachPhotoState(ctx, &photos[i]); err != nil {
			return nil, err
		}
	}

	return photos, nil
}

// ListBundle returns the photos sharing a bundleId, oldest first (upload
// order within the bundle).
func (db *DB) ListBundle(ctx context.Context, bundleID string) ([]model.Photo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, image_url, caption, uploaded_by, user_id, user_photo_url,
			timestamp, bundle_id
		 FROM photos WHERE bundle_id = ? ORDER BY timestamp ASC`,
		bundleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing bundle %s: %w", bundleID, err)
	}
	defer rows.Close()

	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		var bid sql.NullString
		if err := rows.Scan(
			&p.ID, &p.ImageURL, &p.Caption, &p.UploadedBy, &p.UserID,
			&p.UserPhotoURL, &p.Timestamp, &bid,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bundle row: %w", err)
		}
		p.BundleID = bid.String
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating bundle: %w", err)
	}

	return photos, nil
}

// attachPhotoState loads likes and comments for one photo.
func (db *DB) attachPhotoState(ctx context.Context, p *model.Photo) error {
	p.Likes = map[string]bool{}
	likeRows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM photo_likes WHERE photo_id = ?`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading likes for photo %s: %w", p.ID, err)
	}
	for likeRows.Next() {
		var uid string
		if err := likeRows.Scan(&uid); err != nil {
			likeRows.Close()
			return fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		p.Likes[uid] = true
	}
	if err := likeRows.Close(); err != nil {
		return err
	}

	// Comment IDs are xids, so ordering by id is insertion order.
	p.Comments = []model.Comment{}
	commentRows, err := db.conn.QueryContext(ctx,
		`SELECT id, text, user_id, user_name, user_photo_url, timestamp
		 FROM photo_comments WHERE photo_id = ? ORDER BY id ASC`,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading comments for photo %s: %w", p.ID, err)
	}
	for commentRows.Next() {
		var c model.Comment
		if err := commentRows.Scan(
			&c.ID, &c.Text, &c.UserID, &c.UserName, &c.UserPhotoURL, &c.Timestamp,
		); err != nil {
			commentRows.Close()
			return fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		p.Comments = append(p.Comments, c)
	}
	return commentRows.Close()
}

// DeletePhoto removes one photo record; likes and comments cascade.
func (db *DB) DeletePhoto(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting photo %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("photo", id)
	}

	return nil
}

// CountUploadsSince counts distinct upload actions since the cutoff:
// photos in a bundle collapse to one action via COALESCE(bundle_id, id).
func (db *DB) CountUploadsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT COALESCE(bundle_id, id))
		 FROM photos WHERE user_id = ? AND timestamp >= ?`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting uploads for %s: %w", userID, err)
	}
	return count, nil
}

// SetLike adds or removes the user's key in the photo's like set. Both
// directions are idempotent — setting an existing like or removing an
// absent one is not an error.
func (db *DB) SetLike(ctx context.Context, photoID, userID string, liked bool) error {
	// Verify the photo exists so a like against a just-deleted photo
	// surfaces as NotFound rather than silently succeeding.
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE id = ?`, photoID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking photo %s: %w", photoID, err)
	}
	if exists == 0 {
		return apperror.NotFound("photo", photoID)
	}

	if liked {
		_, err = db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO photo_likes (photo_id, user_id) VALUES (?, ?)`,
			photoID, userID,
		)
	} else {
		_, err = db.conn.ExecContext(ctx,
			`DELETE FROM photo_likes WHERE photo_id = ? AND user_id = ?`,
			photoID, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: setting like on photo %s: %w", photoID, err)
	}

	return nil
}

// AddPhotoComment appends a comment to a photo.
func (db *DB) AddPhotoComment(ctx context.Context, photoID string, comment *model.Comment) error {
	if comment.ID == "" {
		comment.ID = xid.New().String()
	}
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO photo_comments (id, photo_id, text, user_id, user_name,
			user_photo_url, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, photoID, comment.Text, comment.UserID, comment.UserName,
		comment.UserPhotoURL, comment.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding comment to photo %s: %w", photoID, err)
	}

	return nil
}
