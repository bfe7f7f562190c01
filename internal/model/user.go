// Package model defines the data structures used throughout the application.
package model

import "time"

// UserProfile represents a club member's account.
//
// We use Facebook OAuth as the identity provider, so the primary external
// identifier is the Facebook user ID (a numeric string). The profile is
// created on the member's first sign-in and overwritten on every subsequent
// sign-in, so DisplayName/Email/PhotoURL always reflect what the provider
// last reported.
//
// Email may be empty: the provider only returns it when the member granted
// the email scope and has a confirmed address. We use the empty string as
// the zero value rather than a nullable pointer.
type UserProfile struct {
	UID         string    `json:"uid"         db:"uid"`          // Facebook's user ID
	DisplayName string    `json:"displayName" db:"display_name"` // e.g. "Kari Nordmann"
	Email       string    `json:"email,omitempty" db:"email"`
	PhotoURL    string    `json:"photoURL,omitempty" db:"photo_url"`
	LastLogin   time.Time `json:"lastLogin"   db:"last_login"`
}
