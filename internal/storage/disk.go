package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/runclub/internal/apperror"
)

// mediaURLPrefix is where the server mounts the media directory.
const mediaURLPrefix = "/media/"

var _ ObjectStore = (*DiskStore)(nil)

// DiskStore keeps objects as files under a single directory. Names are
// regenerated as xids so an uploaded filename can never traverse out of the
// directory or collide with an existing object.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the media directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating media dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// extByContentType maps the upload content types we accept to a file
// extension. Anything else is rejected before touching the disk.
var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Save streams the object to disk under a generated name and returns the
// public URL it will be served from.
func (s *DiskStore) Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", apperror.ValidationFailed("file", fmt.Sprintf("unsupported content type %q", contentType))
	}

	filename := xid.New().String() + ext
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", filename, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: writing %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: closing %s: %w", filename, err)
	}

	return mediaURLPrefix + filename, nil
}

// Delete removes the file behind a public URL. URLs outside the media
// prefix, and files already gone, are ignored — a bundle delete retried
// after a crash must not fail on the objects it already removed.
func (s *DiskStore) Delete(ctx context.Context, publicURL string) error {
	filename, ok := strings.CutPrefix(publicURL, mediaURLPrefix)
	if !ok || filename == "" || strings.Contains(filename, "/") {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: deleting %s: %w", filename, err)
	}
	return nil
}

// Dir returns the directory objects are stored in, for mounting as a
// static file route.
func (s *DiskStore) Dir() string { return s.dir }
