package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/runclub/internal/repository"
)

var _ repository.AdminRepository = (*DB)(nil)

// IsAdmin reports whether the uid appears in the admins table.
func (db *DB) IsAdmin(ctx context.Context, uid string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admins WHERE uid = ?`, uid,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking admin status for %s: %w", uid, err)
	}
	return count > 0, nil
}

// SeedAdmins inserts the configured admin uids. Idempotent; uids removed
// from the config are NOT deleted here — demoting an admin is a manual
// operation on the table.
func (db *DB) SeedAdmins(ctx context.Context, uids []string) error {
	for _, uid := range uids {
		if _, err := db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO admins (uid) VALUES (?)`, uid,
		); err != nil {
			return fmt.Errorf("sqlite: seeding admin %s: %w", uid, err)
		}
	}
	return nil
}
