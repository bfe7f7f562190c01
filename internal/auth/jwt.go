// Package auth provides the OAuth provider wrapper, JWT session tokens, and
// the request middleware that carries the signed-in member's identity.
//
// Session flow:
//  1. Member hits /auth/facebook/login → popup or redirect to Facebook
//  2. Facebook calls back with a code; the server exchanges it for a profile
//  3. The profile is upserted, then a JWT session cookie is issued — in that
//     order, so a session is never observable without a stored profile
//  4. Middleware validates the cookie on API calls and puts the uid in the
//     request context
//
// The JWT is stateless: the uid and expiry live inside the signed token, so
// validation needs no store lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is how long a sign-in lasts before the member has to
// re-authenticate. Club members stay signed in across runs, so this is
// deliberately long; signing in again just refreshes the profile.
const SessionDuration = 7 * 24 * time.Hour

const issuer = "runclub"

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used both to sign and to verify.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the "sub" claim carries the member's
// uid.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new session token for the given uid.
func (s *TokenService) Generate(uid string) (string, error) {
	return s.GenerateWithDuration(uid, SessionDuration)
}

// GenerateWithDuration creates a token with a custom expiry. Used in tests
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(uid string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the uid it carries.
//
// Pinning the accepted algorithms with jwt.WithValidMethods prevents
// algorithm-confusion attacks; requiring the issuer rejects tokens minted
// by other apps sharing a secret by accident.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
