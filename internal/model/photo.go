package model

import "time"

// Photo is one uploaded image in the community feed.
//
// A BundleID groups up to three photos uploaded in one action into a single
// logical post; standalone photos carry no BundleID. Likes are a set of
// userIDs — presence of the key is the whole signal, the value is always
// true in the store.
type Photo struct {
	ID           string          `json:"id"`
	ImageURL     string          `json:"imageUrl"`
	Caption      string          `json:"caption"`
	UploadedBy   string          `json:"uploadedBy"`
	UserID       string          `json:"userId"`
	UserPhotoURL string          `json:"userPhotoURL,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Likes        map[string]bool `json:"likes"`
	Comments     []Comment       `json:"comments"`
	BundleID     string          `json:"bundleId,omitempty"`
}

// Comment is attached to a photo or a race. Append-only: clients never edit
// a comment, only add new ones. The ID is a time-sortable xid, so iterating
// comments in key order is insertion order.
type Comment struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	UserPhotoURL string    `json:"userPhotoURL,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PhotoGroup is one feed entry: either a whole bundle or a single standalone
// photo. Photos within a group share a caption and uploader.
type PhotoGroup struct {
	// Key is the BundleID for bundles, or the photo ID for standalones.
	Key    string  `json:"key"`
	Photos []Photo `json:"photos"`
}

// Timestamp returns the group's sort key: the newest photo in the group.
func (g PhotoGroup) Timestamp() time.Time {
	var latest time.Time
	for _, p := range g.Photos {
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
	}
	return latest
}
