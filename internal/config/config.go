// Package config loads server configuration from the environment.
//
// main.go calls godotenv.Load() first so a local .env file can supply these
// in development; in production they come from the real environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the server needs at startup.
//
// FacebookClientID/Secret and JWTSecret are hard requirements — without them
// nobody can sign in and nothing else works. GoogleAPIKey and SpreadsheetID
// gate only the race-calendar feature: the server starts without them, but
// the calendar endpoints report the missing key instead of fetching.
type Config struct {
	Port          int
	DBPath        string
	MediaDir      string // on-disk object store for uploaded photos
	PublicBaseURL string // prefix for public media URLs, e.g. http://localhost:8080

	JWTSecret string

	FacebookClientID     string
	FacebookClientSecret string
	FacebookCallbackURL  string

	// AdminSecret gates the destructive clear-all-orders action. It is a
	// shared static secret, deliberately not a real authorization scheme.
	AdminSecret string

	// AdminUIDs are the Facebook uids of club admins, seeded into the
	// admins table at startup. Comma-separated in ADMIN_UIDS.
	AdminUIDs []string

	GoogleAPIKey  string
	SpreadsheetID string
}

func FromEnv() (Config, error) {
	var c Config

	c.Port = 8080
	if portStr := strings.TrimSpace(os.Getenv("PORT")); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return c, fmt.Errorf("config: invalid PORT %q", portStr)
		}
		c.Port = port
	}

	c.DBPath = strings.TrimSpace(os.Getenv("DB_PATH"))
	if c.DBPath == "" {
		c.DBPath = "data/runclub.db"
	}

	c.MediaDir = strings.TrimSpace(os.Getenv("MEDIA_DIR"))
	if c.MediaDir == "" {
		c.MediaDir = "data/media"
	}

	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}

	c.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	c.FacebookClientID = strings.TrimSpace(os.Getenv("FACEBOOK_CLIENT_ID"))
	c.FacebookClientSecret = strings.TrimSpace(os.Getenv("FACEBOOK_CLIENT_SECRET"))
	c.FacebookCallbackURL = strings.TrimSpace(os.Getenv("FACEBOOK_CALLBACK_URL"))
	if c.FacebookCallbackURL == "" {
		c.FacebookCallbackURL = fmt.Sprintf("%s/auth/facebook/callback", c.PublicBaseURL)
	}

	c.AdminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))

	for _, uid := range strings.Split(os.Getenv("ADMIN_UIDS"), ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			c.AdminUIDs = append(c.AdminUIDs, uid)
		}
	}

	c.GoogleAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	c.SpreadsheetID = strings.TrimSpace(os.Getenv("RACE_SPREADSHEET_ID"))

	if c.JWTSecret == "" {
		return c, fmt.Errorf("config: JWT_SECRET is empty")
	}
	if c.FacebookClientID == "" {
		return c, fmt.Errorf("config: FACEBOOK_CLIENT_ID is empty")
	}
	if c.FacebookClientSecret == "" {
		return c, fmt.Errorf("config: FACEBOOK_CLIENT_SECRET is empty")
	}
	if c.AdminSecret == "" {
		return c, fmt.Errorf("config: ADMIN_SECRET is empty")
	}

	return c, nil
}

// RaceCalendarEnabled reports whether the Sheets credentials are present.
func (c Config) RaceCalendarEnabled() bool {
	return c.GoogleAPIKey != "" && c.SpreadsheetID != ""
}
