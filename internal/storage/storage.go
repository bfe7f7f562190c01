// Package storage stores uploaded media and serves it back by public URL.
//
// The club's whole photo feed is a few thousand images, so the object store
// is a directory on disk next to the database. The interface keeps the
// photo service ignorant of that: it saves bytes, gets a URL, and deletes
// by URL.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the boundary the photo service uploads through.
type ObjectStore interface {
	// Save writes the object and returns its public URL path.
	Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
	// Delete removes the object behind a public URL previously returned by
	// Save. Deleting an unknown URL is not an error.
	Delete(ctx context.Context, publicURL string) error
}
