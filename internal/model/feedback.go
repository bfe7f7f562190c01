package model

import "time"

// Feedback is one submission from the site-wide feedback form. Submissions
// are append-only; nothing in the app edits or deletes them.
//
// Signed-out visitors may submit too: their UserID is recorded as
// "anonymous" and UserName carries whatever name they typed into the form.
type Feedback struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // bug, feature, other
	Text      string    `json:"feedback"`
	Page      string    `json:"page"` // path the member was on when submitting
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AnonymousUserID marks feedback from visitors without a session.
const AnonymousUserID = "anonymous"
