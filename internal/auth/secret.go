package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. ~250ms per comparison on a modern
// server, which is fine for an action as rare as wiping the order board.
const defaultCost = 12

// SecretGate guards the destructive clear-all-orders action with a shared
// static secret.
//
// This mirrors how the club site has always gated the wipe: one password
// everyone at the bar knows, compared on the spot. It is deliberately NOT a
// real authorization scheme — anyone holding the secret is "admin" for this
// one action. The secret is bcrypt-hashed at startup so the plaintext never
// sits in memory longer than config loading, and comparison is constant-time.
type SecretGate struct {
	hash []byte
}

// NewSecretGate hashes the configured shared secret.
func NewSecretGate(secret string) (*SecretGate, error) {
	if secret == "" {
		return nil, errors.New("auth: admin secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), defaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing admin secret: %w", err)
	}
	return &SecretGate{hash: hash}, nil
}

// newSecretGateWithCost is used by tests — a lower cost keeps them fast.
func newSecretGateWithCost(secret string, cost int) (*SecretGate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, err
	}
	return &SecretGate{hash: hash}, nil
}

// Check reports whether the candidate matches the configured secret.
func (g *SecretGate) Check(candidate string) bool {
	return bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)) == nil
}
