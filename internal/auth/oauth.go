package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// FacebookUser is the portion of the Graph API /me response we care about.
// Facebook returns a larger object — we only unmarshal the fields we need.
type FacebookUser struct {
	ID      string `json:"id"`    // Facebook's user ID — stable, never changes
	Name    string `json:"name"`  // display name
	Email   string `json:"email"` // empty if the member hid it or denied the scope
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// PhotoURL returns the profile picture URL, or "" when Facebook sent none.
func (u *FacebookUser) PhotoURL() string {
	return u.Picture.Data.URL
}

// FacebookProvider wraps golang.org/x/oauth2 for the Facebook Authorization
// Code flow.
//
// The flow is the standard server-side exchange:
//  1. We redirect (or open a popup to) Facebook's authorization endpoint.
//  2. The member approves; Facebook calls back with a short-lived code.
//  3. We exchange the code for an access token server-to-server, so the
//     token never touches the browser.
//  4. We call the Graph API for the member's profile.
type FacebookProvider struct {
	config *oauth2.Config
}

// NewFacebookProvider creates a FacebookProvider with the given credentials.
// callbackURL must exactly match the redirect URI registered with the app.
//
// Scopes we request:
//   - "public_profile" — id, name, picture
//   - "email" — the member's primary email, if they grant it
func NewFacebookProvider(clientID, clientSecret, callbackURL string) *FacebookProvider {
	return &FacebookProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"public_profile", "email"},
			Endpoint:     facebook.Endpoint,
		},
	}
}

// AuthURL returns the URL to send the member to for authorization.
//
// The state is a random string we store in a cookie before redirecting; the
// callback verifies the returned state matches, which stops CSRF attempts
// from completing an OAuth flow the member never started.
func (p *FacebookProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// Facebook user profile.
func (p *FacebookProvider) Exchange(ctx context.Context, code string) (*FacebookUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that attaches the access
	// token to every request.
	client := p.config.Client(ctx, oauthToken)

	fields := url.Values{"fields": {"id,name,email,picture.type(large)"}}
	resp, err := client.Get("https://graph.facebook.com/v19.0/me?" + fields.Encode())
	if err != nil {
		return nil, fmt.Errorf("auth: calling Graph API /me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Graph API /me returned status %d", resp.StatusCode)
	}

	var fbUser FacebookUser
	if err := json.NewDecoder(resp.Body).Decode(&fbUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Graph API response: %w", err)
	}

	if fbUser.ID == "" {
		return nil, fmt.Errorf("auth: Facebook returned an invalid user (empty ID)")
	}

	return &fbUser, nil
}
