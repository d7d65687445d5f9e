// Package auth validates role handshakes against a static token table.
package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/LocoMH/wwtbam-server/domain"
)

// TokenAuthenticator checks a claimed role against its shared secret.
// The table is copied on construction and never written afterwards.
type TokenAuthenticator struct {
	tokens map[domain.Role][]byte
}

func New(tokens map[domain.Role]string) *TokenAuthenticator {
	table := make(map[domain.Role][]byte, len(tokens))
	for role, token := range tokens {
		if !role.Valid() {
			continue
		}
		table[role] = []byte(token)
	}
	return &TokenAuthenticator{tokens: table}
}

func (a *TokenAuthenticator) Authenticate(role, token string) (domain.Role, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return "", fmt.Errorf("role %q: %w", role, domain.ErrUnknownRole)
	}

	secret, ok := a.tokens[r]
	if !ok || len(secret) == 0 {
		return "", fmt.Errorf("role %q: %w", role, domain.ErrInvalidToken)
	}
	if subtle.ConstantTimeCompare(secret, []byte(token)) != 1 {
		return "", fmt.Errorf("role %q: %w", role, domain.ErrInvalidToken)
	}
	return r, nil
}
