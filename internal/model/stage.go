package model

import "time"

// StageDetail is the immutable course definition for one leg of the relay.
// The 15 legs are fixed when the course is announced and never change at
// runtime; they are compiled into the stage service.
type StageDetail struct {
	Number      int    `json:"number"`
	Distance    string `json:"distance"` // e.g. "1100 m"
	Description string `json:"description"`
	Profile     string `json:"profile"` // e.g. "Kupert", "Flat"
}

// Stage is a course leg merged at read time with its mutable signup state.
type Stage struct {
	StageDetail
	Signups          []StageSignup `json:"signups"`
	LockedInRunnerID string        `json:"lockedInRunnerId,omitempty"`
	PaymentReceived  bool          `json:"paymentReceived"`
}

// LockedIn reports whether an official runner has been confirmed.
func (s Stage) LockedIn() bool { return s.LockedInRunnerID != "" }

// StageSignup is one runner's registration for a stage.
//
// Two kinds exist: authenticated member signups (IsGuest false, UserID is
// the member's uid, auto-verified) and guest signups (IsGuest true, UserID
// is a synthetic "guest-" key, unverified until an admin approves). Only
// verified signups are eligible for lock-in.
type StageSignup struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	UserPhotoURL string    `json:"userPhotoURL,omitempty"`
	IsGuest      bool      `json:"isGuest"`
	GuestName    string    `json:"guestName,omitempty"`
	GuestEmail   string    `json:"guestEmail,omitempty"`
	IsVerified   bool      `json:"isVerified"`
	Timestamp    time.Time `json:"timestamp"`
}

// Assignee is a deduplicated identity that can be assigned a todo:
// everyone with a verified stage signup, plus the current user.
type Assignee struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
}
