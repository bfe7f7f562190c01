package model

import "time"

// PresenceEntry signals that a signed-in member is currently using the
// ordering page. Entries are keyed by a store-generated ID, not by user ID:
// the invariant that a user has at most one live entry is reconciled by the
// presence service, because a disconnect hook from an earlier tab may have
// already removed the entry this session created.
type PresenceEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"userId"`
	PhotoURL  string    `json:"photoURL,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
