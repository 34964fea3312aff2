package auth

import (
	"errors"
	"strings"
)

var (
	ErrNoToken   = errors.New("no token provided")
	ErrForbidden = errors.New("forbidden")
)

const bearerPrefix = "Bearer "

// Guard turns an Authorization header into a verified Claim.
type Guard struct {
	tokens *TokenService
}

func NewGuard(tokens *TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate returns ErrNoToken when header carries no bearer credential
// and ErrInvalidToken when the credential does not verify.
func (g *Guard) Authenticate(header string) (Claim, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return Claim{}, ErrNoToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return Claim{}, ErrNoToken
	}
	return g.tokens.Verify(token)
}

// Authorize allows a mutation only when the caller owns the resource.
// Roles grant no override.
func Authorize(claim Claim, ownerID string) error {
	if claim.UserID == "" || claim.UserID != ownerID {
		return ErrForbidden
	}
	return nil
}
